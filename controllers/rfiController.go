package controllers

import (
	"strconv"

	"rfitrack-backend/database"
	"rfitrack-backend/middlewares"
	"rfitrack-backend/models"
	"rfitrack-backend/notify"
	"rfitrack-backend/securelink"
	"rfitrack-backend/utils"
	"rfitrack-backend/workflow"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Shared workflow collaborators, wired once at startup.
var (
	machine *workflow.Machine
	links   *securelink.Service
)

// Setup wires the workflow machine and secure-link service against the
// connected database. Must run after database.Connect.
func Setup(db *gorm.DB, baseURL string) {
	notifier := notify.NewDBNotifier(db)
	machine = workflow.NewMachine(db, notifier)
	links = securelink.NewService(db, machine, notifier, baseURL)
}

type createRFIDTO struct {
	ProjectID          string   `json:"project_id" validate:"required,uuid4"`
	RFINumber          string   `json:"rfi_number" validate:"required,max=50"`
	Subject            string   `json:"subject" validate:"required,max=500"`
	Question           string   `json:"question" validate:"required"`
	Discipline         string   `json:"discipline" validate:"max=100"`
	Priority           string   `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	CostImpact         bool     `json:"cost_impact"`
	ScheduleImpact     bool     `json:"schedule_impact"`
	CostImpactAmount   *float64 `json:"cost_impact_amount" validate:"omitempty,gte=0"`
	ScheduleImpactDays *int     `json:"schedule_impact_days" validate:"omitempty,gte=0"`
}

type updateRFIDTO struct {
	Subject            *string  `json:"subject" validate:"omitempty,max=500"`
	Question           *string  `json:"question"`
	Discipline         *string  `json:"discipline" validate:"omitempty,max=100"`
	Priority           *string  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	CostImpact         *bool    `json:"cost_impact"`
	ScheduleImpact     *bool    `json:"schedule_impact"`
	CostImpactAmount   *float64 `json:"cost_impact_amount" validate:"omitempty,gte=0"`
	ScheduleImpactDays *int     `json:"schedule_impact_days" validate:"omitempty,gte=0"`
}

type generateLinkDTO struct {
	ExpirationDays         int  `json:"expiration_days" validate:"omitempty,gte=1,lte=365"`
	AllowMultipleResponses bool `json:"allow_multiple_responses"`
}

type transitionDTO struct {
	Status string `json:"status" validate:"required,oneof=draft active overdue closed"`
	Note   string `json:"note" validate:"max=1000"`
}

func CreateRFI(c *fiber.Ctx) error {
	var dto createRFIDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	var project models.Project
	if err := database.DB.First(&project, "id = ?", dto.ProjectID).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "project not found")
	}

	priority := dto.Priority
	if priority == "" {
		priority = "medium"
	}
	userID, _ := c.Locals("userID").(string)
	rfi := models.RFI{
		ProjectID:          dto.ProjectID,
		RFINumber:          dto.RFINumber,
		Subject:            dto.Subject,
		Question:           dto.Question,
		Discipline:         dto.Discipline,
		Priority:           priority,
		CostImpact:         dto.CostImpact,
		ScheduleImpact:     dto.ScheduleImpact,
		CostImpactAmount:   dto.CostImpactAmount,
		ScheduleImpactDays: dto.ScheduleImpactDays,
		Status:             models.StatusDraft,
		CreatedBy:          userID,
	}

	if err := database.DB.Create(&rfi).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create RFI",
			"error":   err.Error(),
		})
	}

	database.DB.Preload("Project").First(&rfi, rfi.ID)
	return c.JSON(rfi)
}

func GetRFIs(c *fiber.Ctx) error {
	q := database.DB.Preload("Project").Order("created_at DESC")
	if pid := c.Query("project_id"); pid != "" {
		q = q.Where("project_id = ?", pid)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var rfis []models.RFI
	q.Find(&rfis)
	return c.JSON(fiber.Map{
		"rfis":    rfis,
		"message": "success",
	})
}

func GetRFI(c *fiber.Ctx) error {
	rfi, err := loadRFI(c)
	if err != nil {
		return err
	}
	return c.JSON(rfi)
}

// UpdateRFI patches draft fields. Once an RFI has been sent, its content is
// frozen; only workflow transitions may change it.
func UpdateRFI(c *fiber.Ctx) error {
	rfi, err := loadRFI(c)
	if err != nil {
		return err
	}
	if rfi.Status != models.StatusDraft {
		return workflow.ErrInvalidState
	}

	var dto updateRFIDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	if len(updates) == 0 {
		return c.JSON(rfi)
	}
	if err := database.DB.Model(rfi).Updates(updates).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not update RFI",
			"error":   err.Error(),
		})
	}
	return c.JSON(rfi)
}

// GenerateRFILink mints a secure link and sends the RFI to the client.
func GenerateRFILink(c *fiber.Ctx) error {
	rfi, err := loadRFI(c)
	if err != nil {
		return err
	}

	// Body is optional: defaults are 30 days, single response.
	var dto generateLinkDTO
	if len(c.Body()) > 0 {
		if err := middlewares.BindAndValidate(c, &dto); err != nil {
			return err
		}
	}

	actor, _ := c.Locals("userID").(string)
	link, err := links.GenerateLink(rfi.ID, actor, securelink.LinkOptions{
		ExpirationDays:         dto.ExpirationDays,
		AllowMultipleResponses: dto.AllowMultipleResponses,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"secure_link": link.URL,
		"token":       link.Token,
		"expires_at":  link.ExpiresAt,
	})
}

// RegenerateRFILink replaces the current secure link with a fresh one.
func RegenerateRFILink(c *fiber.Ctx) error {
	rfi, err := loadRFI(c)
	if err != nil {
		return err
	}

	var dto generateLinkDTO
	if len(c.Body()) > 0 {
		if err := middlewares.BindAndValidate(c, &dto); err != nil {
			return err
		}
	}

	actor, _ := c.Locals("userID").(string)
	link, err := links.RegenerateLink(rfi.ID, actor, securelink.LinkOptions{
		ExpirationDays:         dto.ExpirationDays,
		AllowMultipleResponses: dto.AllowMultipleResponses,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"secure_link": link.URL,
		"token":       link.Token,
		"expires_at":  link.ExpiresAt,
	})
}

// RevokeRFILink kills the current secure link for good.
func RevokeRFILink(c *fiber.Ctx) error {
	rfi, err := loadRFI(c)
	if err != nil {
		return err
	}
	actor, _ := c.Locals("userID").(string)
	if err := links.RevokeLink(rfi.ID, actor); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "secure link revoked",
	})
}

// TransitionRFI is the internal set-status operation. The requested target
// runs through the same rule table as every other transition.
func TransitionRFI(c *fiber.Ctx) error {
	rfi, err := loadRFI(c)
	if err != nil {
		return err
	}

	var dto transitionDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	current := workflow.StateOf(rfi)
	ev, ok := workflow.EventForTarget(current, models.RFIStatus(dto.Status))
	if !ok {
		return workflow.ErrInvalidTransition
	}

	var data workflow.TransitionData
	switch ev {
	case workflow.EventStartFieldWork:
		data = workflow.FieldWorkData{Note: dto.Note}
	case workflow.EventCompleteWork, workflow.EventForceClose:
		data = workflow.CloseData{Reason: dto.Note}
	case workflow.EventSendToClient:
		data = workflow.SendToClientData{}
	}

	actor, _ := c.Locals("userID").(string)
	updated, err := machine.Execute(rfi.ID, ev, current, actor, data)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    updated,
	})
}

// GetRFITransitions reports where the RFI sits and where it can go next.
// UI affordance only; the write path re-validates.
func GetRFITransitions(c *fiber.Ctx) error {
	rfi, err := loadRFI(c)
	if err != nil {
		return err
	}
	current := workflow.StateOf(rfi)
	available := workflow.AvailableTransitions(current)
	if available == nil {
		available = []workflow.State{}
	}
	return c.JSON(fiber.Map{
		"current_status":        rfi.Status,
		"current_stage":         rfi.Stage,
		"workflow_state":        workflow.Describe(current),
		"available_transitions": available,
	})
}

// loadRFI resolves the :id path param to a row, mapping absence to the
// workflow taxonomy.
func loadRFI(c *fiber.Ctx) (*models.RFI, error) {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id <= 0 {
		return nil, workflow.ErrNotFound
	}
	var rfi models.RFI
	if err := database.DB.Preload("Project").First(&rfi, id).Error; err != nil {
		return nil, workflow.ErrNotFound
	}
	return &rfi, nil
}
