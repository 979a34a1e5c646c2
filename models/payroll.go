package models

import (
	"time"

	"gorm.io/gorm"
)

// Payroll run statuses.
const (
	PayrollStatusDraft     = "draft"
	PayrollStatusFinalized = "finalized"
)

// PayrollRun is one payout cycle over unpaid commission entries.
type PayrollRun struct {
	gorm.Model
	PeriodStart time.Time  `json:"periodStart" gorm:"not null"`
	PeriodEnd   time.Time  `json:"periodEnd" gorm:"not null"`
	Status      string     `json:"status" gorm:"default:'draft'"`
	TotalAmount float64    `json:"totalAmount"`
	AgentCount  int        `json:"agentCount"`
	FinalizedAt *time.Time `json:"finalizedAt"`

	CreatedByID uint  `json:"createdById"`
	CreatedBy   *User `json:"createdBy,omitempty" gorm:"foreignKey:CreatedByID"`

	Items []PayrollItem `json:"items,omitempty"`
}

// PayrollItem is one agent's payout within a run. The gross commission from
// statement entries is multiplied through the agent's comp-grid percentage.
type PayrollItem struct {
	gorm.Model
	PayrollRunID uint  `json:"payrollRunId" gorm:"index;not null"`
	AgentID      uint  `json:"agentId" gorm:"index;not null"`
	Agent        *User `json:"agent,omitempty" gorm:"foreignKey:AgentID"`

	EntryCount      int     `json:"entryCount"`
	GrossCommission float64 `json:"grossCommission"`
	CompPercent     float64 `json:"compPercent"`
	PayoutAmount    float64 `json:"payoutAmount"`
}
