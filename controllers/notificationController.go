package controllers

import (
	"rfitrack-backend/database"
	"rfitrack-backend/models"

	"github.com/gofiber/fiber/v2"
)

// Notification inbox for the internal team. The workflow core only appends
// rows; reading and acknowledging them happens here.

func GetNotifications(c *fiber.Ctx) error {
	q := database.DB.Order("created_at DESC").Limit(100)
	if rfiID := c.Query("rfi_id"); rfiID != "" {
		q = q.Where("rfi_id = ?", rfiID)
	}
	if c.Query("unread") == "true" {
		q = q.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	q.Find(&notifications)
	return c.JSON(fiber.Map{
		"notifications": notifications,
		"message":       "success",
	})
}

func MarkNotificationRead(c *fiber.Ctx) error {
	res := database.DB.Model(&models.Notification{}).
		Where("id = ?", c.Params("id")).
		Update("is_read", true)
	if res.Error != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not update notification",
			"error":   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "notification not found")
	}
	return c.JSON(fiber.Map{
		"message": "success",
	})
}
