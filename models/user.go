package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an agent or staff account.
type User struct {
	gorm.Model
	Login    string `json:"login" gorm:"unique;not null"`
	Password string `json:"-" gorm:"not null"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	PhotoURL string `json:"photoUrl"`

	// Producer identity. NPN is the National Producer Number; empty until the
	// agent passes NIPR verification during onboarding.
	NPN           string     `json:"npn" gorm:"column:npn;index"`
	ResidentState string     `json:"residentState"`
	NiprVerified  bool       `json:"niprVerified" gorm:"default:false"`
	VerifiedAt    *time.Time `json:"verifiedAt"`

	// States the agent holds licenses in, recorded from verification results.
	LicensedStates StringList `json:"licensedStates" gorm:"type:jsonb"`

	// Agency hierarchy: payouts roll up through the upline.
	UplineID *uint `json:"uplineId"`
	Upline   *User `json:"upline,omitempty" gorm:"foreignKey:UplineID"`

	// CompLevel selects the agent's row in a product's comp grid.
	CompLevel string `json:"compLevel" gorm:"default:'street'"`

	Roles []Role `json:"roles" gorm:"many2many:user_roles;"`
}
