package models

import (
	"time"

	"gorm.io/gorm"
)

// Commission report statuses.
const (
	ReportStatusProcessing = "processing"
	ReportStatusParsed     = "parsed"
	ReportStatusFailed     = "failed"
)

// CommissionReport is one uploaded carrier statement, parsed server-side into
// commission entries.
type CommissionReport struct {
	gorm.Model
	CarrierID    uint       `json:"carrierId" gorm:"index"`
	Carrier      *Carrier   `json:"carrier,omitempty" gorm:"foreignKey:CarrierID"`
	FileName     string     `json:"fileName"`
	FilePath     string     `json:"filePath"`
	Status       string     `json:"status" gorm:"default:'processing'"`
	FailureNote  string     `json:"failureNote"`
	PeriodStart  *time.Time `json:"periodStart"`
	PeriodEnd    *time.Time `json:"periodEnd"`
	EntryCount   int        `json:"entryCount"`
	TotalAmount  float64    `json:"totalAmount"`
	UploadedByID uint       `json:"uploadedById" gorm:"index"`
	UploadedBy   *User      `json:"uploadedBy,omitempty" gorm:"foreignKey:UploadedByID"`

	// Set by the carrier remittance webhook once the deposit clears.
	RemittanceID   string     `json:"remittanceId"`
	RemittedAmount float64    `json:"remittedAmount"`
	RemittedAt     *time.Time `json:"remittedAt"`
}

// CommissionEntry is one parsed line of a carrier statement.
type CommissionEntry struct {
	gorm.Model
	ReportID uint              `json:"reportId" gorm:"index;not null"`
	Report   *CommissionReport `json:"-" gorm:"foreignKey:ReportID"`

	PolicyNumber     string     `json:"policyNumber" gorm:"index"`
	InsuredName      string     `json:"insuredName"`
	WritingAgentNPN  string     `json:"writingAgentNpn" gorm:"column:writing_agent_npn;index"`
	PremiumAmount    float64    `json:"premiumAmount"`
	CommissionAmount float64    `json:"commissionAmount"`
	StatementDate    *time.Time `json:"statementDate"`

	// Resolved from WritingAgentNPN at parse time when possible.
	AgentID *uint `json:"agentId" gorm:"index"`
	Agent   *User `json:"agent,omitempty" gorm:"foreignKey:AgentID"`

	// Nil until the entry is picked up by a payroll run.
	PayrollItemID *uint `json:"payrollItemId" gorm:"index"`
}
