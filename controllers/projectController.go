package controllers

import (
	"rfitrack-backend/database"
	"rfitrack-backend/middlewares"
	"rfitrack-backend/models"
	"rfitrack-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type createProjectDTO struct {
	Name          string `json:"name" validate:"required,max=200"`
	ProjectNumber string `json:"project_number" validate:"max=50"`
	Address       string `json:"address"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Zip           string `json:"zip"`
	ClientCompany string `json:"client_company" validate:"required,max=200"`
	ClientContact string `json:"client_contact"`
	ClientEmail   string `json:"client_email" validate:"required,email"`
}

type updateProjectDTO struct {
	Name          *string `json:"name" validate:"omitempty,max=200"`
	ProjectNumber *string `json:"project_number" validate:"omitempty,max=50"`
	Address       *string `json:"address"`
	City          *string `json:"city"`
	Country       *string `json:"country"`
	Zip           *string `json:"zip"`
	ClientCompany *string `json:"client_company" validate:"omitempty,max=200"`
	ClientContact *string `json:"client_contact"`
	ClientEmail   *string `json:"client_email" validate:"omitempty,email"`
	Active        *bool   `json:"active"`
}

func CreateProject(c *fiber.Ctx) error {
	var dto createProjectDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	userID, _ := c.Locals("userID").(string)
	project := models.Project{
		Name:          dto.Name,
		ProjectNumber: dto.ProjectNumber,
		Address:       dto.Address,
		City:          dto.City,
		Country:       dto.Country,
		Zip:           dto.Zip,
		ClientCompany: dto.ClientCompany,
		ClientContact: dto.ClientContact,
		ClientEmail:   dto.ClientEmail,
		OwnerId:       userID,
		Active:        true,
	}

	if err := database.DB.Create(&project).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create project",
			"error":   err.Error(),
		})
	}

	database.DB.Preload("Owner").First(&project, "id = ?", project.Id)
	return c.JSON(project)
}

func GetProjects(c *fiber.Ctx) error {
	var projects []models.Project
	database.DB.Order("created_at DESC").Find(&projects)
	return c.JSON(fiber.Map{
		"projects": projects,
		"message":  "success",
	})
}

func GetProject(c *fiber.Ctx) error {
	var project models.Project
	if err := database.DB.Preload("Owner").First(&project, "id = ?", c.Params("id")).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "project not found")
	}
	return c.JSON(project)
}

func UpdateProject(c *fiber.Ctx) error {
	var project models.Project
	if err := database.DB.First(&project, "id = ?", c.Params("id")).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "project not found")
	}

	var dto updateProjectDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	if len(updates) == 0 {
		return c.JSON(project)
	}
	if err := database.DB.Model(&project).Updates(updates).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not update project",
			"error":   err.Error(),
		})
	}
	return c.JSON(project)
}
