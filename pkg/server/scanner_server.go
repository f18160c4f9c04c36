package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/config"
	handlers "github.com/promptguard/promptguard/pkg/handlers/http"
	"github.com/promptguard/promptguard/pkg/server/router"
)

type (
	ScannerServerDI struct {
		HandlerTransport *handlers.HandlerTransport
		Config           *config.Config
		Logger           *logrus.Logger
	}
	ScannerServer struct {
		*BaseServer
		handlerTransport *handlers.HandlerTransport
	}
)

func NewScannerServer(di ScannerServerDI) *ScannerServer {
	return &ScannerServer{
		BaseServer:       NewBaseServer(di.Config, di.Logger),
		handlerTransport: di.HandlerTransport,
	}
}

func (s *ScannerServer) Run() error {
	s.Router.Use(recover.New())
	s.WithRouters(router.NewScannerRouter(s.handlerTransport))
	s.setupHealthCheck()
	s.setupMetricsEndpoint()

	addr := fmt.Sprintf(":%d", s.Config.Server.Port)
	s.Logger.WithField("addr", addr).Info("starting scanner server")
	return s.Router.Listen(addr)
}

func (s *ScannerServer) Shutdown() error {
	return s.Router.Shutdown()
}
