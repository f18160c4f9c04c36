package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/handlers/http/request"
	"github.com/promptguard/promptguard/pkg/scanner"
	"github.com/promptguard/promptguard/pkg/types"
)

type scanHandler struct {
	logger  *logrus.Logger
	scanner *scanner.Scanner
}

func NewScanHandler(logger *logrus.Logger, sc *scanner.Scanner) Handler {
	return &scanHandler{logger: logger, scanner: sc}
}

// Handle @Summary Scan text for security threats
// @Description Runs the detector pipeline against LLM-bound text and returns the verdict.
// @Tags Scanner
// @Accept json
// @Produce json
// @Param payload body request.ScanRequest true "Scan payload"
// @Success 200 {object} types.ScanResult
// @Failure 400 {object} map[string]interface{} "Invalid request data"
// @Router /v1/security/scan [post]
func (h *scanHandler) Handle(c *fiber.Ctx) error {
	var req request.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.WithError(err).Error("failed to bind request")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidJsonPayload})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	scanReq := &types.ScanRequest{
		Text: req.Text,
		Context: types.RequestContext{
			Endpoint:  req.Endpoint,
			Model:     req.Model,
			RequestID: req.RequestID,
			ClientKey: req.ClientKey,
			Timestamp: time.Now().UTC(),
		},
	}

	result, err := h.scanner.Scan(c.Context(), scanReq)
	if err != nil {
		h.logger.WithError(err).WithField("request_id", scanReq.Context.RequestID).Error("scan failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "scan unavailable"})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
