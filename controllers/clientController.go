package controllers

import (
	"errors"

	"rfitrack-backend/middlewares"
	"rfitrack-backend/securelink"
	"rfitrack-backend/workflow"

	"github.com/gofiber/fiber/v2"
)

// The client controller is the only surface reachable without internal
// authentication. Everything it exposes is gated on the secure-link token,
// and failures leak nothing beyond the fixed reason strings.

type clientResponseDTO struct {
	ClientResponse            string `json:"client_response" validate:"required"`
	ClientResponseSubmittedBy string `json:"client_response_submitted_by" validate:"required,max=200"`
	ResponseStatus            string `json:"response_status" validate:"required,oneof=approved rejected needs_clarification"`
	AdditionalComments        string `json:"additional_comments" validate:"max=2000"`
}

// GetClientRFI serves the RFI view behind a secure link.
func GetClientRFI(c *fiber.Ctx) error {
	rfi, err := links.ValidateToken(c.Params("token"))
	if err != nil {
		return clientFailure(c, err)
	}
	return c.JSON(fiber.Map{
		"rfi": fiber.Map{
			"rfi_number":      rfi.RFINumber,
			"subject":         rfi.Subject,
			"question":        rfi.Question,
			"discipline":      rfi.Discipline,
			"priority":        rfi.Priority,
			"status":          rfi.Status,
			"stage":           rfi.Stage,
			"date_sent":       rfi.DateSent,
			"link_expires_at": rfi.LinkExpiresAt,
			"project": fiber.Map{
				"name":           rfi.Project.Name,
				"project_number": rfi.Project.ProjectNumber,
			},
		},
	})
}

// SubmitClientResponse records the client's answer. The at-most-once
// guarantee lives in the machine's conditional write, not here: two racing
// submissions with the same valid token end up as one success and one
// conflict, never two recorded responses.
func SubmitClientResponse(c *fiber.Ctx) error {
	var dto clientResponseDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	rfi, err := links.ValidateToken(c.Params("token"))
	if err != nil {
		return clientFailure(c, err)
	}

	updated, err := machine.Execute(rfi.ID, workflow.EventClientResponse,
		workflow.StateOf(rfi),
		dto.ClientResponseSubmittedBy,
		workflow.ResponseReceivedData{
			Response:           dto.ClientResponse,
			SubmittedBy:        dto.ClientResponseSubmittedBy,
			ResponseStatus:     dto.ResponseStatus,
			AdditionalComments: dto.AdditionalComments,
		})
	if err != nil {
		return clientFailure(c, err)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"message":       "Response submitted successfully",
		"rfi_id":        updated.ID,
		"response_date": updated.DateResponded,
		"stage":         updated.Stage,
	})
}

// clientFailure renders a taxonomy error with the client-facing reason
// string. The raw sentinel text stays internal.
func clientFailure(c *fiber.Ctx, err error) error {
	var status int
	var message string
	switch {
	case errors.Is(err, workflow.ErrExpired):
		status, message = fiber.StatusGone, securelink.ReasonExpired
	case errors.Is(err, workflow.ErrAlreadyResponded):
		status, message = fiber.StatusConflict, securelink.ReasonAlreadyResponded
	case errors.Is(err, workflow.ErrConflict):
		status, message = fiber.StatusConflict, "The RFI changed while submitting; please reload and try again"
	case errors.Is(err, workflow.ErrInvalidTransition):
		status, message = fiber.StatusUnprocessableEntity, "This RFI can no longer be responded to"
	case errors.Is(err, workflow.ErrNotFound):
		status, message = fiber.StatusNotFound, securelink.ReasonInvalidLink
	default:
		// Infrastructure failure: let the central handler log and sanitize it.
		return err
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
