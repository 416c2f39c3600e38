package main

import "storefront-chat/internal/cli"

func main() {
	cli.Execute()
}
