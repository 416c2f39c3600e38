package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-chat/internal/domain"
	"storefront-chat/internal/repository"
	"storefront-chat/internal/services"
	"storefront-chat/internal/transport/httpdto"
	"storefront-chat/pkg/logger"
)

type noPush struct{ calls int }

func (p *noPush) Push(context.Context, string, []byte) error {
	p.calls++
	return nil
}

func newChatRouter(t *testing.T, uid string) (*gin.Engine, *noPush) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryStore([]domain.User{
		{ID: "cust-1", Name: "Asha", Role: domain.RoleCustomer},
		{ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin},
		{ID: "admin-2", Name: "Second Admin", Role: domain.RoleAdmin},
	})
	pusher := &noPush{}
	svc := services.NewMessageService(store, store, pusher, nil, logger.NewNop())
	h := NewChatHandler(svc, logger.NewNop())

	r := gin.New()
	if uid != "" {
		r.Use(func(c *gin.Context) {
			c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), uid, "customer"))
			c.Next()
		})
	}
	r.GET("/api/chats/contacts/:role", h.Contacts)
	r.GET("/api/chats/messages/:senderId/:receiverId", h.Messages)
	r.POST("/api/chats/send", h.Send)
	return r, pusher
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const sendBody = `{"senderId":"cust-1","senderRole":"customer","receiverId":"admin-1","receiverRole":"admin","text":"where is my order?","clientMessageId":"tmp-1"}`

func TestContactsReturnsBareArray(t *testing.T) {
	r, _ := newChatRouter(t, "")

	w := do(r, http.MethodGet, "/api/chats/contacts/admin", "")
	require.Equal(t, http.StatusOK, w.Code)
	contacts, err := httpdto.DecodeContacts(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, domain.RoleAdmin, contacts[0].Role)

	w = do(r, http.MethodGet, "/api/chats/contacts/storeManager", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(r, http.MethodGet, "/api/chats/contacts/wizard", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestSendIsIdempotentAndDoesNotPush(t *testing.T) {
	r, pusher := newChatRouter(t, "")

	w := do(r, http.MethodPost, "/api/chats/send", sendBody)
	require.Equal(t, http.StatusOK, w.Code)
	first, err := httpdto.DecodeMessage(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "tmp-1", first.ClientMessageID)

	w = do(r, http.MethodPost, "/api/chats/send", sendBody)
	require.Equal(t, http.StatusOK, w.Code)
	second, err := httpdto.DecodeMessage(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Zero(t, pusher.calls)

	w = do(r, http.MethodGet, "/api/chats/messages/admin-1/cust-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	history, err := httpdto.DecodeMessages(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
}

func TestSendValidation(t *testing.T) {
	r, _ := newChatRouter(t, "")

	w := do(r, http.MethodPost, "/api/chats/send", `{"senderId":"cust-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/chats/send", strings.Replace(sendBody, `"admin"`, `"owner"`, 1))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/chats/send", strings.Replace(sendBody, `"receiverRole":"admin"`, `"receiverRole":"customer"`, 1))
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body httpdto.Response[any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "FORBIDDEN", body.Code)
}

func TestAuthenticatedCallerScope(t *testing.T) {
	r, _ := newChatRouter(t, "cust-1")

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/chats/send", sendBody).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/chats/messages/cust-1/admin-1", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/api/chats/messages/admin-1/admin-2", "").Code)

	forged := strings.Replace(sendBody, `"senderId":"cust-1"`, `"senderId":"cust-9"`, 1)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/chats/send", forged).Code)
}
