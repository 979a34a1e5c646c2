package nipr

import (
	"context"
	"testing"
	"time"

	"agentspace/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A second pooled connection to :memory: would see its own empty database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.User{}, &models.Role{}, &models.Permission{}, &models.VerificationJob{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	q := NewQueue(db)
	if err := q.EnsureIndexes(); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return q
}

func enqueueJob(t *testing.T, q *Queue, userID uint, queuedAt time.Time) *models.VerificationJob {
	t.Helper()
	job := &models.VerificationJob{
		UserID:   userID,
		Kind:     models.VerificationKindAutomated,
		NPN:      "12345678",
		LastName: "Smith",
		SSNLast4: "1234",
	}
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Pin the enqueue time so ordering in the test is unambiguous.
	if err := q.DB.Model(job).Update("queued_at", queuedAt).Error; err != nil {
		t.Fatalf("set queued_at: %v", err)
	}
	job.QueuedAt = queuedAt
	return job
}

func TestEnqueueAssignsIDAndState(t *testing.T) {
	q := newTestQueue(t)
	job := enqueueJob(t, q, 1, time.Now())

	if job.ID == "" {
		t.Error("expected a UUID to be assigned")
	}
	if job.Status != models.VerificationStatusQueued {
		t.Errorf("status = %q, want queued", job.Status)
	}

	got, err := q.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Message != "Waiting in queue" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestGetNotFound(t *testing.T) {
	q := newTestQueue(t)
	if _, err := q.Get(context.Background(), "missing-id"); err != ErrNotFound {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestPosition(t *testing.T) {
	q := newTestQueue(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	first := enqueueJob(t, q, 1, base)
	second := enqueueJob(t, q, 2, base.Add(time.Second))
	third := enqueueJob(t, q, 3, base.Add(2*time.Second))

	for i, job := range []*models.VerificationJob{first, second, third} {
		pos, err := q.Position(context.Background(), job)
		if err != nil {
			t.Fatalf("Position: %v", err)
		}
		if pos != i+1 {
			t.Errorf("job %d position = %d, want %d", i, pos, i+1)
		}
	}

	// A job off the queue has no position.
	running := *first
	running.Status = models.VerificationStatusRunning
	pos, err := q.Position(context.Background(), &running)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != 0 {
		t.Errorf("running job position = %d, want 0", pos)
	}
}

func TestActiveForUser(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	finished := enqueueJob(t, q, 7, base)
	if err := q.MarkCompleted(ctx, finished.ID, &models.VerificationResult{NPN: "12345678"}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	if _, err := q.ActiveForUser(ctx, 7); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after completion, got %v", err)
	}

	current := enqueueJob(t, q, 7, base.Add(time.Minute))
	got, err := q.ActiveForUser(ctx, 7)
	if err != nil {
		t.Fatalf("ActiveForUser: %v", err)
	}
	if got.ID != current.ID {
		t.Errorf("active job = %s, want %s", got.ID, current.ID)
	}

	if _, err := q.ActiveForUser(ctx, 99); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestEnqueueRejectsSecondActiveJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first := enqueueJob(t, q, 5, time.Now())

	dup := &models.VerificationJob{
		UserID:   5,
		Kind:     models.VerificationKindAutomated,
		NPN:      "87654321",
		LastName: "Smith",
		SSNLast4: "1234",
	}
	if err := q.Enqueue(ctx, dup); err != ErrActive {
		t.Fatalf("Enqueue error = %v, want ErrActive", err)
	}

	// Still held while the job runs.
	if err := q.DB.Model(&models.VerificationJob{}).Where("id = ?", first.ID).
		Update("status", models.VerificationStatusRunning).Error; err != nil {
		t.Fatalf("set running: %v", err)
	}
	if err := q.Enqueue(ctx, dup); err != ErrActive {
		t.Fatalf("Enqueue while running = %v, want ErrActive", err)
	}

	// A finished job frees the slot.
	if err := q.MarkCompleted(ctx, first.ID, &models.VerificationResult{NPN: "87654321"}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := q.Enqueue(ctx, dup); err != nil {
		t.Fatalf("Enqueue after completion: %v", err)
	}
}

func TestQueuedJobsOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	second := enqueueJob(t, q, 2, base.Add(time.Minute))
	first := enqueueJob(t, q, 1, base)

	jobs, err := q.QueuedJobs(ctx)
	if err != nil {
		t.Fatalf("QueuedJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Errorf("jobs out of claim order: %s, %s", jobs[0].ID, jobs[1].ID)
	}
}

func TestUpdateProgressClamps(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	job := enqueueJob(t, q, 1, time.Now())

	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{-0.2, 0},
		{1.7, 1},
	}
	for _, tt := range tests {
		if err := q.UpdateProgress(ctx, job.ID, tt.in, "working"); err != nil {
			t.Fatalf("UpdateProgress(%v): %v", tt.in, err)
		}
		got, err := q.Get(ctx, job.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Progress != tt.want {
			t.Errorf("progress after %v = %v, want %v", tt.in, got.Progress, tt.want)
		}
		if got.Message != "working" {
			t.Errorf("message = %q", got.Message)
		}
	}
}

func TestMarkCompletedStoresResult(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	job := enqueueJob(t, q, 1, time.Now())

	result := &models.VerificationResult{
		NPN:      "12345678",
		Carriers: []string{"Americo", "Aetna"},
		Licenses: []models.LicenseLine{{State: "TX", LicenseNumber: "L-1", Status: "Active"}},
	}
	if err := q.MarkCompleted(ctx, job.ID, result); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	got, err := q.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.VerificationStatusCompleted || got.Progress != 1 {
		t.Errorf("status/progress = %q/%v", got.Status, got.Progress)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if got.Result == nil || len(got.Result.Carriers) != 2 || got.Result.Carriers[0] != "Americo" {
		t.Errorf("result = %+v", got.Result)
	}
	if len(got.Result.Licenses) != 1 || got.Result.Licenses[0].State != "TX" {
		t.Errorf("licenses = %+v", got.Result.Licenses)
	}
}

func TestMarkFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	job := enqueueJob(t, q, 1, time.Now())

	if err := q.MarkFailed(ctx, job.ID, "producer not found"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	got, err := q.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.VerificationStatusFailed {
		t.Errorf("status = %q", got.Status)
	}
	if got.FailureReason != "producer not found" {
		t.Errorf("failure reason = %q", got.FailureReason)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
}

func TestRequeueStalled(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	stalled := enqueueJob(t, q, 1, time.Now().Add(-time.Hour))
	oldStart := time.Now().Add(-30 * time.Minute)
	if err := q.DB.Model(stalled).Updates(map[string]interface{}{
		"status":     models.VerificationStatusRunning,
		"started_at": oldStart,
		"progress":   0.4,
	}).Error; err != nil {
		t.Fatalf("setup stalled job: %v", err)
	}

	fresh := enqueueJob(t, q, 2, time.Now())
	if err := q.DB.Model(fresh).Updates(map[string]interface{}{
		"status":     models.VerificationStatusRunning,
		"started_at": time.Now(),
	}).Error; err != nil {
		t.Fatalf("setup fresh job: %v", err)
	}

	n, err := q.RequeueStalled(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("RequeueStalled: %v", err)
	}
	if n != 1 {
		t.Fatalf("requeued %d jobs, want 1", n)
	}

	got, _ := q.Get(ctx, stalled.ID)
	if got.Status != models.VerificationStatusQueued || got.Progress != 0 {
		t.Errorf("stalled job after requeue: status=%q progress=%v", got.Status, got.Progress)
	}
	still, _ := q.Get(ctx, fresh.ID)
	if still.Status != models.VerificationStatusRunning {
		t.Errorf("fresh running job was requeued: status=%q", still.Status)
	}
}
