package firefly

import (
	"context"
	"errors"
	"time"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
)

// DefaultPollInterval is the wait between status checks of a pending job.
const DefaultPollInterval = time.Second

// ErrPollLimit is wrapped in the error returned when a job is still pending
// after the configured attempts or wait time.
var ErrPollLimit = errors.New("poll limit reached")

// StatusFetcher returns one status snapshot for a job.
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (*JobResult, error)
}

// Poller re-checks a job until it leaves the running and cancel_pending
// states. MaxAttempts and MaxWait are disabled when zero.
type Poller struct {
	Status      StatusFetcher
	Interval    time.Duration
	MaxAttempts int
	MaxWait     time.Duration
	Clock       infra.Clock
	Logger      *infra.Logger
}

// Await blocks until jobID reaches a terminal status and returns that
// snapshot without interpreting it.
func (p *Poller) Await(ctx context.Context, jobID string) (*JobResult, error) {
	if p.Status == nil {
		return nil, errors.New("firefly: poller has no status source")
	}
	clock := p.Clock
	if clock == nil {
		clock = infra.SystemClock{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := infra.LoggerOrNop(p.Logger)

	start := clock.Now()
	for attempt := 1; ; attempt++ {
		result, err := p.Status.JobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if !result.Status.Pending() {
			return result, nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return nil, p.limitError(jobID, result.Status)
		}
		if p.MaxWait > 0 && clock.Now().Sub(start)+interval > p.MaxWait {
			return nil, p.limitError(jobID, result.Status)
		}
		logger.Debug().
			Str("job_id", jobID).
			Str("status", string(result.Status)).
			Int("attempt", attempt).
			Dur("wait", interval).
			Msg("firefly: job still pending")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clock.After(interval):
		}
	}
}

func (p *Poller) limitError(jobID string, status JobStatus) error {
	return &domain.ServiceError{
		Service: serviceName,
		Op:      "poll " + jobID,
		Status:  string(status),
		Err:     ErrPollLimit,
	}
}

// CheckResult turns a terminal snapshot into an error unless the job
// succeeded with at least one output.
func CheckResult(result *JobResult) error {
	if result == nil {
		return &domain.ServiceError{Service: serviceName, Op: "status", Message: "empty job result"}
	}
	if result.Status != StatusSucceeded {
		return &domain.ServiceError{
			Service: serviceName,
			Op:      "job " + result.JobID,
			Status:  string(result.Status),
			Code:    result.ErrorCode,
			Message: result.Message,
		}
	}
	if len(result.Outputs()) == 0 {
		return &domain.ServiceError{
			Service: serviceName,
			Op:      "job " + result.JobID,
			Status:  string(result.Status),
			Message: "no outputs",
		}
	}
	return nil
}
