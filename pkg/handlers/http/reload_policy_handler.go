package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/scanner"
)

type reloadPolicyHandler struct {
	logger  *logrus.Logger
	scanner *scanner.Scanner
}

func NewReloadPolicyHandler(logger *logrus.Logger, sc *scanner.Scanner) Handler {
	return &reloadPolicyHandler{logger: logger, scanner: sc}
}

// Handle @Summary Reload the scanner policy
// @Description Validates the submitted policy and swaps it in atomically. In-flight scans finish under the previous policy.
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body config.PolicyConfig true "Scanner policy"
// @Success 200 {object} map[string]interface{} "Policy reloaded"
// @Failure 400 {object} map[string]interface{} "Invalid policy"
// @Router /v1/admin/policy/reload [post]
func (h *reloadPolicyHandler) Handle(c *fiber.Ctx) error {
	var settings map[string]interface{}
	if err := c.BodyParser(&settings); err != nil {
		h.logger.WithError(err).Error("failed to bind policy")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrInvalidJsonPayload})
	}

	var policy config.PolicyConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &policy,
	})
	if err != nil {
		h.logger.WithError(err).Error("failed to build policy decoder")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	if err := decoder.Decode(settings); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.scanner.Reload(&policy); err != nil {
		h.logger.WithError(err).Error("policy reload rejected")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	h.logger.Info("scanner policy reloaded via admin endpoint")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "reloaded"})
}
