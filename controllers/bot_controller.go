package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estatenexy/manager"
	"estatenexy/models"
	"estatenexy/utils"
)

type BotController struct {
	DB      *gorm.DB
	Manager *manager.Manager
	Logger  *logrus.Entry
}

func NewBotController(db *gorm.DB, mgr *manager.Manager, logger *logrus.Entry) *BotController {
	return &BotController{DB: db, Manager: mgr, Logger: logger}
}

// StartBot boots the dispatcher for the tenant's channel.
func (bc *BotController) StartBot(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)
	ch := c.Params("channel")

	if err := bc.Manager.Start(c.Context(), tenant.ID, ch); err != nil {
		switch {
		case errors.Is(err, manager.ErrNoCred):
			return utils.ErrorResponse(c, fiber.StatusNotFound, "No active credential for this channel", nil)
		default:
			bc.Logger.WithError(err).WithField("tenant_id", tenant.ID).Error("bot start failed")
			return utils.ErrorResponse(c, fiber.StatusBadGateway, "Could not start bot", err)
		}
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"channel": ch,
		"running": true,
	}))
}

func (bc *BotController) StopBot(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)
	ch := c.Params("channel")

	if err := bc.Manager.Stop(c.Context(), tenant.ID, ch); err != nil {
		if errors.Is(err, manager.ErrNotRunning) {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Bot is not running", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not stop bot", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"channel": ch,
		"running": false,
	}))
}

func (bc *BotController) RestartBot(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)
	ch := c.Params("channel")

	if err := bc.Manager.Restart(c.Context(), tenant.ID, ch); err != nil {
		bc.Logger.WithError(err).WithField("tenant_id", tenant.ID).Error("bot restart failed")
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Could not restart bot", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"channel": ch,
		"running": true,
	}))
}

// BotStatus lists the tenant's credentials with their live state.
func (bc *BotController) BotStatus(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)

	var creds []models.BotCredential
	if err := bc.DB.Where("tenant_id = ?", tenant.ID).Find(&creds).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not load bot credentials", err)
	}

	type status struct {
		Channel   string `json:"channel"`
		IsActive  bool   `json:"is_active"`
		Running   bool   `json:"running"`
		LastError string `json:"last_error,omitempty"`
	}
	out := make([]status, 0, len(creds))
	for _, cred := range creds {
		out = append(out, status{
			Channel:   cred.Channel,
			IsActive:  cred.IsActive,
			Running:   bc.Manager.Running(tenant.ID, cred.Channel),
			LastError: cred.LastError,
		})
	}

	return c.JSON(utils.SuccessResponse(out))
}
