package models

import (
	"time"

	"gorm.io/gorm"
)

// Client is a policy holder in the agency's book of business.
type Client struct {
	gorm.Model
	FirstName  string     `json:"firstName" gorm:"not null"`
	LastName   string     `json:"lastName" gorm:"not null"`
	MiddleName string     `json:"middleName"`
	BirthDate  *time.Time `json:"birthDate"`
	Gender     string     `json:"gender"`
	Phone      string     `json:"phone"`
	Email      string     `json:"email"`
	Street     string     `json:"street"`
	City       string     `json:"city"`
	State      string     `json:"state" gorm:"size:2;index"`
	Zip        string     `json:"zip"`
	TobaccoUse bool       `json:"tobaccoUse"`
	Notes      string     `json:"notes"`

	// Servicing agent who owns the relationship.
	AgentID uint  `json:"agentId" gorm:"index"`
	Agent   *User `json:"agent,omitempty" gorm:"foreignKey:AgentID"`
}
