package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(c *fiber.Ctx) error
}

const ErrInvalidJsonPayload = "invalid JSON payload"

// HandlerTransport groups the HTTP handlers the routers mount.
type HandlerTransport struct {
	ScanHandler         Handler
	ReloadPolicyHandler Handler
}
