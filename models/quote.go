package models

import "gorm.io/gorm"

// Quote statuses.
const (
	QuoteStatusDraft     = "draft"
	QuoteStatusPresented = "presented"
	QuoteStatusAccepted  = "accepted"
	QuoteStatusDeclined  = "declined"
)

// Quote is an underwriting quote/proposal worked up for a client. Premiums are
// computed from the product's rate formula and snapshotted here.
type Quote struct {
	gorm.Model
	AgentID   uint     `json:"agentId" gorm:"index;not null"`
	Agent     *User    `json:"agent,omitempty" gorm:"foreignKey:AgentID"`
	ClientID  *uint    `json:"clientId" gorm:"index"`
	Client    *Client  `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	CarrierID uint     `json:"carrierId"`
	Carrier   *Carrier `json:"carrier,omitempty" gorm:"foreignKey:CarrierID"`
	ProductID uint     `json:"productId" gorm:"index;not null"`
	Product   *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`

	Status         string  `json:"status" gorm:"default:'draft'"`
	Age            int     `json:"age"`
	FaceAmount     float64 `json:"faceAmount"`
	TobaccoUse     bool    `json:"tobaccoUse"`
	MonthlyPremium float64 `json:"monthlyPremium"`
	AnnualPremium  float64 `json:"annualPremium"`
	Notes          string  `json:"notes"`

	// Raw inputs used for the premium calculation, kept for re-pricing.
	Inputs JSONMap `json:"inputs" gorm:"type:jsonb"`
}
