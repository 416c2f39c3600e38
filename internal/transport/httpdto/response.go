package httpdto

import chat_errors "storefront-chat/pkg/errors"

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// ErrorResponseFrom builds the error body for err using its mapped code.
func ErrorResponseFrom(err error) Response[any] {
	return NewErrorResponse(err.Error(), chat_errors.Code(err))
}
