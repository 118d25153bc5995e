package controller

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"estatenexy/models"
	"estatenexy/utils"
	"estatenexy/worker"
)

type LeadController struct {
	DB        *gorm.DB
	Followups *worker.FollowupWorker
	Logger    *logrus.Entry
}

func NewLeadController(db *gorm.DB, followups *worker.FollowupWorker, logger *logrus.Entry) *LeadController {
	return &LeadController{DB: db, Followups: followups, Logger: logger}
}

// ListLeads returns the tenant's leads, newest activity first, with
// optional state and temperature filters.
func (lc *LeadController) ListLeads(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	q := lc.DB.Model(&models.Lead{}).Where("tenant_id = ?", tenant.ID)
	if state := c.Query("state"); state != "" {
		q = q.Where("conversation_state = ?", state)
	}
	if temp := c.Query("temperature"); temp != "" {
		q = q.Where("temperature = ?", temp)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not count leads", err)
	}

	var leads []models.Lead
	err := q.Order("last_inbound_at DESC NULLS LAST").
		Offset((page - 1) * limit).Limit(limit).
		Find(&leads).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not list leads", err)
	}

	return c.JSON(utils.SuccessResponse(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)
	id := utils.ParseUint(c.Params("id"))

	var lead models.Lead
	err := lc.DB.Where("id = ? AND tenant_id = ?", id, tenant.ID).First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not load lead", err)
	}

	return c.JSON(utils.SuccessResponse(lead))
}

// SetFollowupEnabled toggles the automated drip for one lead.
func (lc *LeadController) SetFollowupEnabled(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)
	id := utils.ParseUint(c.Params("id"))

	var input struct {
		Enabled *bool `json:"enabled" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil || input.Enabled == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	updates := map[string]interface{}{"followup_enabled": *input.Enabled}
	if !*input.Enabled {
		updates["next_followup_at"] = nil
	}

	res := lc.DB.Model(&models.Lead{}).
		Where("id = ? AND tenant_id = ?", id, tenant.ID).
		Updates(updates)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not update lead", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"id":      id,
		"enabled": *input.Enabled,
	}))
}

// TriggerFollowup sends the lead's current follow-up stage right away.
func (lc *LeadController) TriggerFollowup(c *fiber.Ctx) error {
	tenant := c.Locals("tenant").(*models.Tenant)
	id := utils.ParseUint(c.Params("id"))

	var lead models.Lead
	err := lc.DB.Where("id = ? AND tenant_id = ?", id, tenant.ID).First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Could not load lead", err)
	}

	if err := lc.Followups.TriggerLead(c.Context(), lead.ID); err != nil {
		lc.Logger.WithError(err).WithField("lead_id", lead.ID).Warn("manual follow-up failed")
		return utils.ErrorResponse(c, fiber.StatusConflict, "Follow-up could not be sent", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"id": id, "sent": true}))
}
