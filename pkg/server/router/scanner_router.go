package router

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	handlers "github.com/promptguard/promptguard/pkg/handlers/http"
)

var ErrMissingHandler = errors.New("missing handler")

type scannerRouter struct {
	handlerTransport *handlers.HandlerTransport
}

func NewScannerRouter(handlerTransport *handlers.HandlerTransport) ServerRouter {
	return &scannerRouter{handlerTransport: handlerTransport}
}

func (r *scannerRouter) BuildRoutes(router *fiber.App) error {
	if r.handlerTransport.ScanHandler == nil || r.handlerTransport.ReloadPolicyHandler == nil {
		return ErrMissingHandler
	}

	v1 := router.Group("/v1")
	{
		security := v1.Group("/security")
		{
			security.Post("/scan", r.handlerTransport.ScanHandler.Handle)
		}

		admin := v1.Group("/admin")
		{
			admin.Post("/policy/reload", r.handlerTransport.ReloadPolicyHandler.Handle)
		}
	}

	return nil
}
