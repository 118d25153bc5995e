package controller

import (
	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estatenexy/models"
	"estatenexy/utils"
)

type TenantController struct {
	DB     *gorm.DB
	Logger *logrus.Entry
}

func NewTenantController(db *gorm.DB, logger *logrus.Entry) *TenantController {
	return &TenantController{DB: db, Logger: logger}
}

func (tc *TenantController) GetTenant(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)
	return c.JSON(utils.SuccessResponse(tenant))
}

// RegisterAdminEmail sets the address hot-lead alerts go to. Without a
// registered address, alert delivery is silently skipped.
func (tc *TenantController) RegisterAdminEmail(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)

	var input struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address", err)
	}

	if err := tc.DB.Model(tenant).Update("admin_email", input.Email).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not save admin email", err)
	}

	tc.Logger.WithField("tenant_id", tenant.ID).Info("admin alert email registered")
	return c.JSON(utils.SuccessResponse(fiber.Map{"admin_email": input.Email}))
}

func (tc *TenantController) RemoveAdminEmail(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)

	if err := tc.DB.Model(tenant).Update("admin_email", nil).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not remove admin email", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"admin_email": nil}))
}

// UpdateSettings currently covers the tenant's default bot language.
func (tc *TenantController) UpdateSettings(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)

	var input struct {
		DefaultLanguage string `json:"default_language" validate:"required,oneof=en fa ar ru"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := tc.DB.Model(tenant).Update("default_language", input.DefaultLanguage).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not update settings", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"default_language": input.DefaultLanguage}))
}

// UpsertCredential stores a channel bot token. Tokens are encrypted at
// rest; a changed token requires a bot restart to take effect.
func (tc *TenantController) UpsertCredential(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)
	ch := c.Params("channel")

	if ch != models.ChannelTelegram && ch != models.ChannelWhatsApp && ch != models.ChannelInstagram {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unsupported channel", nil)
	}

	var input struct {
		Token    string `json:"token" validate:"required,min=10"`
		IsActive *bool  `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	encrypted, err := utils.EncryptToken(input.Token)
	if err != nil {
		tc.Logger.WithError(err).Error("token encryption failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not store credential", nil)
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}

	var cred models.BotCredential
	err = tc.DB.Where("tenant_id = ? AND channel = ?", tenant.ID, ch).First(&cred).Error
	switch {
	case err == nil:
		cred.TokenEncrypted = encrypted
		cred.IsActive = active
		cred.LastError = ""
		err = tc.DB.Save(&cred).Error
	case err == gorm.ErrRecordNotFound:
		cred = models.BotCredential{
			TenantID:       tenant.ID,
			Channel:        ch,
			TokenEncrypted: encrypted,
			IsActive:       active,
		}
		err = tc.DB.Create(&cred).Error
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not store credential", err)
	}

	tc.Logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"channel":   ch,
	}).Info("bot credential stored")

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"channel":   ch,
		"is_active": cred.IsActive,
	}))
}
