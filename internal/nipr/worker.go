package nipr

import (
	"context"
	"log/slog"
	"time"

	"agentspace/models"
)

// Notifier pushes job lifecycle events to watching clients. The websocket
// hub implements it; tests use a recording fake.
type Notifier interface {
	PublishProgress(jobID string, progress float64, message string, queuePosition int)
	PublishCompleted(jobID string, result *models.VerificationResult)
	PublishFailed(jobID string, reason string)
}

// NopNotifier drops all events.
type NopNotifier struct{}

func (NopNotifier) PublishProgress(string, float64, string, int) {}

func (NopNotifier) PublishCompleted(string, *models.VerificationResult) {}

func (NopNotifier) PublishFailed(string, string) {}

// Processor executes one claimed verification job end to end.
type Processor struct {
	Queue    *Queue
	Gateway  Gateway
	Reviewer DocumentReviewer
	Notifier Notifier
}

func (p *Processor) notifier() Notifier {
	if p.Notifier == nil {
		return NopNotifier{}
	}
	return p.Notifier
}

// progress writes the job row and pushes the same event to subscribers; the
// row is the source of truth for poll/reload recovery, the push is for live
// sessions.
func (p *Processor) progress(ctx context.Context, jobID string, value float64, message string) {
	if err := p.Queue.UpdateProgress(ctx, jobID, value, message); err != nil {
		slog.Error("failed to persist job progress", "job_id", jobID, "error", err)
	}
	p.notifier().PublishProgress(jobID, value, message, 0)
}

// Process runs the job's retrieval path and records the terminal state.
func (p *Processor) Process(ctx context.Context, job models.VerificationJob) error {
	var result *models.VerificationResult
	var err error

	switch job.Kind {
	case models.VerificationKindDocument:
		result, err = p.processDocument(ctx, job)
	default:
		result, err = p.processAutomated(ctx, job)
	}

	if err != nil {
		if markErr := p.Queue.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			slog.Error("failed to mark job failed", "job_id", job.ID, "error", markErr)
		}
		p.notifier().PublishFailed(job.ID, err.Error())
		return err
	}

	if err := p.Queue.MarkCompleted(ctx, job.ID, result); err != nil {
		return err
	}
	p.recordVerifiedAgent(ctx, job, result)
	p.notifier().PublishCompleted(job.ID, result)
	return nil
}

func (p *Processor) processAutomated(ctx context.Context, job models.VerificationJob) (*models.VerificationResult, error) {
	p.progress(ctx, job.ID, 0.05, "Connecting to NIPR")
	p.progress(ctx, job.ID, 0.15, "Authenticating producer identity")

	// The gateway call dominates the runtime (minutes against the real
	// service), so progress creeps forward on a ticker while it runs.
	type fetchResult struct {
		result *models.VerificationResult
		err    error
	}
	done := make(chan fetchResult, 1)
	go func() {
		r, err := p.Gateway.FetchLicenses(ctx, job.NPN, job.LastName, job.SSNLast4)
		done <- fetchResult{r, err}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	current := 0.2
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case fr := <-done:
			if fr.err != nil {
				return nil, fr.err
			}
			p.progress(ctx, job.ID, 0.9, "Compiling carrier appointments")
			return fr.result, nil
		case <-ticker.C:
			if current < 0.85 {
				current += 0.05
				p.progress(ctx, job.ID, current, "Retrieving license records from NIPR")
			}
		}
	}
}

func (p *Processor) processDocument(ctx context.Context, job models.VerificationJob) (*models.VerificationResult, error) {
	p.progress(ctx, job.ID, 0.2, "Reading uploaded license report")
	if p.Reviewer == nil {
		// Without an extraction backend the document is accepted as-is and
		// routed to the licensing team.
		p.progress(ctx, job.ID, 0.8, "Queued for licensing review")
		return &models.VerificationResult{}, nil
	}

	p.progress(ctx, job.ID, 0.5, "Extracting carrier appointments")
	result, err := p.Reviewer.ExtractCarriers(ctx, job.DocumentPath)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// recordVerifiedAgent writes verification results back onto the agent row.
func (p *Processor) recordVerifiedAgent(ctx context.Context, job models.VerificationJob, result *models.VerificationResult) {
	updates := map[string]interface{}{
		"nipr_verified": true,
		"verified_at":   time.Now(),
	}
	if result != nil && result.NPN != "" {
		updates["npn"] = result.NPN
	} else if job.NPN != "" {
		updates["npn"] = job.NPN
	}
	if result != nil && len(result.Licenses) > 0 {
		states := make(models.StringList, 0, len(result.Licenses))
		seen := make(map[string]bool)
		for _, lic := range result.Licenses {
			if lic.State == "" || seen[lic.State] {
				continue
			}
			seen[lic.State] = true
			states = append(states, lic.State)
		}
		updates["licensed_states"] = states
	}
	if err := p.Queue.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", job.UserID).Updates(updates).Error; err != nil {
		slog.Error("failed to record verified agent", "user_id", job.UserID, "error", err)
	}
}

// Run starts the dispatcher and worker goroutines. The dispatcher polls the
// queue on an interval and feeds a bounded channel consumed by the workers.
func Run(ctx context.Context, queue *Queue, processor *Processor, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan models.VerificationJob, concurrency)

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobsCh)
				return
			case <-ticker.C:
				for {
					job, found, err := queue.ClaimNext(ctx)
					if err != nil {
						slog.Error("verification job claim error", "error", err)
						break
					}
					if !found {
						break
					}
					jobsCh <- job
				}
				publishQueuePositions(ctx, queue, processor.notifier())
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				if err := processor.Process(ctx, job); err != nil {
					slog.Warn("verification job failed", "worker", idx, "job_id", job.ID, "error", err)
				}
			}
		}(i)
	}
}

// publishQueuePositions pushes each waiting job's current position to its
// watchers, so the number a client sees moves as the queue drains.
func publishQueuePositions(ctx context.Context, queue *Queue, notifier Notifier) {
	jobs, err := queue.QueuedJobs(ctx)
	if err != nil {
		slog.Error("failed to list queued jobs", "error", err)
		return
	}
	for i, job := range jobs {
		notifier.PublishProgress(job.ID, job.Progress, job.Message, i+1)
	}
}
