package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Project struct {
	Id            string `json:"id" gorm:"primaryKey"`
	Name          string `json:"name" gorm:"not null;unique"`
	ProjectNumber string `json:"project_number"`
	Address       string `json:"address"`
	City          string `json:"city"`
	Country       string `json:"country"`
	Zip           string `json:"zip"`

	// Client-side contact: RFIs on this project are sent to these people.
	ClientCompany string `json:"client_company" gorm:"not null"`
	ClientContact string `json:"client_contact"`
	ClientEmail   string `json:"client_email" gorm:"not null"`

	OwnerId   string    `json:"-"`
	Owner     User      `json:"owner" gorm:"foreignKey:OwnerId;references:Id"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
}

func (project *Project) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	project.Id = uuid.NewString()
	return
}
