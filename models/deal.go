package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Deal statuses. A deal moves draft -> submitted -> active and may terminate
// in lapsed, cancelled or declined.
const (
	DealStatusDraft     = "draft"
	DealStatusSubmitted = "submitted"
	DealStatusActive    = "active"
	DealStatusLapsed    = "lapsed"
	DealStatusCancelled = "cancelled"
	DealStatusDeclined  = "declined"
)

// Deal is a policy sale record shown in book-of-business tables.
type Deal struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	PolicyNumber  string     `json:"policyNumber" gorm:"column:policy_number;uniqueIndex"`
	Status        string     `json:"status" gorm:"default:'draft';index"`
	AnnualPremium float64    `json:"annualPremium" gorm:"column:annual_premium"`
	FaceAmount    float64    `json:"faceAmount" gorm:"column:face_amount"`
	EffectiveDate *time.Time `json:"effectiveDate,omitempty" gorm:"column:effective_date"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty" gorm:"column:submitted_at"`
	Notes         string     `json:"notes"`

	AgentID   uint     `json:"agentId" gorm:"index;not null"`
	Agent     *User    `json:"agent,omitempty" gorm:"foreignKey:AgentID"`
	ClientID  uint     `json:"clientId" gorm:"index;not null"`
	Client    *Client  `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	CarrierID uint     `json:"carrierId" gorm:"index"`
	Carrier   *Carrier `json:"carrier,omitempty" gorm:"foreignKey:CarrierID"`
	ProductID uint     `json:"productId" gorm:"index"`
	Product   *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`

	// Status audit trail kept inline; one entry per transition.
	StatusHistory StatusChanges `json:"statusHistory" gorm:"type:jsonb"`
}

func (Deal) TableName() string { return "deals" }

// StatusChange records one status transition on a deal.
type StatusChange struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedBy uint      `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
}

type StatusChanges []StatusChange

func (s StatusChanges) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StatusChanges) Scan(value interface{}) error {
	return scanJSON(value, s)
}
