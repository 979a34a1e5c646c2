package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Verification job kinds and statuses. Jobs are identified by UUID so that a
// client can persist the id across reloads and resume watching the same job.
const (
	VerificationKindAutomated = "automated"
	VerificationKindDocument  = "document"

	VerificationStatusQueued    = "queued"
	VerificationStatusRunning   = "running"
	VerificationStatusCompleted = "completed"
	VerificationStatusFailed    = "failed"
)

// VerificationJob is one NIPR license-verification request in the queue.
type VerificationJob struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	UserID uint  `json:"userId" gorm:"index;not null"`
	User   *User `json:"-" gorm:"foreignKey:UserID"`

	Kind     string  `json:"kind" gorm:"not null"`
	Status   string  `json:"status" gorm:"default:'queued';index"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	Attempts int     `json:"attempts"`

	// Credentials for the automated retrieval path.
	NPN      string `json:"npn" gorm:"column:npn"`
	LastName string `json:"lastName"`
	SSNLast4 string `json:"-" gorm:"column:ssn_last4"`

	// Uploaded license report for the document path.
	DocumentPath string `json:"documentPath"`

	Result        *VerificationResult `json:"result,omitempty" gorm:"type:jsonb"`
	FailureReason string              `json:"failureReason"`

	QueuedAt   time.Time  `json:"queuedAt"`
	StartedAt  *time.Time `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
}

func (VerificationJob) TableName() string { return "verification_jobs" }

// LicenseLine is one license row retrieved from NIPR.
type LicenseLine struct {
	State           string `json:"state"`
	LicenseNumber   string `json:"licenseNumber"`
	LineOfAuthority string `json:"lineOfAuthority"`
	Status          string `json:"status"`
	ExpirationDate  string `json:"expirationDate"`
}

// VerificationResult is the payload of a completed job: the carrier names the
// agent is appointed with plus the underlying license lines.
type VerificationResult struct {
	NPN      string        `json:"npn"`
	Carriers []string      `json:"carriers"`
	Licenses []LicenseLine `json:"licenses"`
}

func (r VerificationResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *VerificationResult) Scan(value interface{}) error {
	return scanJSON(value, r)
}
