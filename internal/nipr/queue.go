package nipr

import (
	"context"
	"errors"
	"time"

	"agentspace/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Queue persists verification jobs and hands them to workers. Claiming uses
// FOR UPDATE SKIP LOCKED so several server instances can share one queue
// without double-running a job.
type Queue struct {
	DB *gorm.DB
}

func NewQueue(db *gorm.DB) *Queue { return &Queue{DB: db} }

var (
	ErrNotFound = errors.New("verification job not found")

	// ErrActive means the user already has a queued or running job. The
	// partial unique index created by EnsureIndexes enforces this in the
	// database, so two concurrent submits cannot both get a job.
	ErrActive = errors.New("verification already in progress")
)

// EnsureIndexes creates the index behind the one-live-job-per-agent rule.
// Called once at startup, after migration.
func (q *Queue) EnsureIndexes() error {
	return q.DB.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS verification_jobs_one_active
		ON verification_jobs (user_id)
		WHERE status IN ('queued', 'running') AND deleted_at IS NULL
	`).Error
}

// Enqueue stores a new queued job and returns it with its UUID assigned.
// Returns ErrActive when the user already has a live job.
func (q *Queue) Enqueue(ctx context.Context, job *models.VerificationJob) error {
	job.ID = uuid.NewString()
	job.Status = models.VerificationStatusQueued
	job.Progress = 0
	job.Message = "Waiting in queue"
	job.QueuedAt = time.Now()
	if err := q.DB.WithContext(ctx).Create(job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrActive
		}
		return err
	}
	return nil
}

// ClaimNext locks the oldest queued job, transitions it to running and bumps
// its attempt counter. found is false when the queue is empty.
func (q *Queue) ClaimNext(ctx context.Context) (job models.VerificationJob, found bool, err error) {
	err = q.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := tx.Raw(`
			SELECT id FROM verification_jobs
			WHERE status = ? AND deleted_at IS NULL
			ORDER BY queued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		`, models.VerificationStatusQueued).Row()

		var id string
		if scanErr := row.Scan(&id); scanErr != nil {
			// No queued rows is the common case, not an error.
			return nil
		}

		if err := tx.Model(&models.VerificationJob{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":     models.VerificationStatusRunning,
				"started_at": time.Now(),
				"attempts":   gorm.Expr("attempts + 1"),
				"message":    "Verification in progress",
			}).Error; err != nil {
			return err
		}

		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return err
		}
		found = true
		return nil
	})
	return job, found, err
}

// Get fetches a job by id.
func (q *Queue) Get(ctx context.Context, id string) (*models.VerificationJob, error) {
	var job models.VerificationJob
	err := q.DB.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ActiveForUser returns the most recent non-terminal job for a user, letting
// a reloaded client resume watching without a stored job id.
func (q *Queue) ActiveForUser(ctx context.Context, userID uint) (*models.VerificationJob, error) {
	var job models.VerificationJob
	err := q.DB.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]string{models.VerificationStatusQueued, models.VerificationStatusRunning}).
		Order("queued_at desc").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// QueuedJobs returns the waiting jobs in claim order.
func (q *Queue) QueuedJobs(ctx context.Context) ([]models.VerificationJob, error) {
	var jobs []models.VerificationJob
	err := q.DB.WithContext(ctx).
		Where("status = ?", models.VerificationStatusQueued).
		Order("queued_at").Find(&jobs).Error
	return jobs, err
}

// Position reports 1-based queue position for queued jobs and 0 otherwise.
func (q *Queue) Position(ctx context.Context, job *models.VerificationJob) (int, error) {
	if job.Status != models.VerificationStatusQueued {
		return 0, nil
	}
	var ahead int64
	err := q.DB.WithContext(ctx).Model(&models.VerificationJob{}).
		Where("status = ? AND queued_at < ?", models.VerificationStatusQueued, job.QueuedAt).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// UpdateProgress clamps and stores a job's progress and status message.
func (q *Queue) UpdateProgress(ctx context.Context, jobID string, progress float64, message string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return q.DB.WithContext(ctx).Model(&models.VerificationJob{}).Where("id = ?", jobID).
		Updates(map[string]interface{}{"progress": progress, "message": message}).Error
}

// MarkCompleted stores the result and finishes the job.
func (q *Queue) MarkCompleted(ctx context.Context, jobID string, result *models.VerificationResult) error {
	now := time.Now()
	return q.DB.WithContext(ctx).Model(&models.VerificationJob{}).Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":      models.VerificationStatusCompleted,
			"progress":    1.0,
			"message":     "Verification complete",
			"result":      result,
			"finished_at": now,
		}).Error
}

// MarkFailed finishes the job with a failure reason.
func (q *Queue) MarkFailed(ctx context.Context, jobID string, reason string) error {
	now := time.Now()
	return q.DB.WithContext(ctx).Model(&models.VerificationJob{}).Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":         models.VerificationStatusFailed,
			"message":        "Verification failed",
			"failure_reason": reason,
			"finished_at":    now,
		}).Error
}

// RequeueStalled returns jobs stuck in running (from a crashed worker or a
// restart mid-job) to the queue. Called once at startup.
func (q *Queue) RequeueStalled(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := q.DB.WithContext(ctx).Model(&models.VerificationJob{}).
		Where("status = ? AND started_at < ?", models.VerificationStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":   models.VerificationStatusQueued,
			"progress": 0,
			"message":  "Re-queued after interruption",
		})
	return res.RowsAffected, res.Error
}
