// Package batch runs many invocations concurrently and summarizes them.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moamenhredeen/oascall/internal/apierr"
	"github.com/moamenhredeen/oascall/internal/invoke"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/registry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// EventType represents the type of batch event
type EventType int

const (
	// EventStarting indicates a call is about to be dispatched
	EventStarting EventType = iota
	// EventCompleted indicates a call has finished
	EventCompleted
)

// Event represents progress during a batch run
type Event struct {
	Type      EventType
	Call      Call
	Result    *models.CallResult // nil for Starting events
	Index     int                // call index (0-based)
	Total     int                // total number of calls
	Completed int                // calls finished so far
}

// OnEvent is a callback for batch events. It may be called from several
// goroutines at once.
type OnEvent func(event Event)

// Config holds batch configuration
type Config struct {
	Concurrency int           // Number of concurrent workers
	RateLimit   float64       // Max calls per second (0 = unlimited)
	Timeout     time.Duration // Per-call timeout (0 = none)
}

// DefaultConfig returns default batch configuration
func DefaultConfig() Config {
	return Config{
		Concurrency: 1,
		Timeout:     30 * time.Second,
	}
}

// Runner executes calls against one registry through one invoker
type Runner struct {
	config   Config
	registry *registry.Registry
	invoker  *invoke.Invoker
	limiter  *rate.Limiter
	log      *logrus.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger for run reporting
func WithLogger(log *logrus.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a runner
func NewRunner(reg *registry.Registry, iv *invoke.Invoker, config Config, opts ...Option) *Runner {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		burst := int(config.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	r := &Runner{
		config:   config,
		registry: reg,
		invoker:  iv,
		limiter:  limiter,
		log:      logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes calls with a worker pool and returns their summary. Results
// keep the order of calls.
func (r *Runner) Run(ctx context.Context, calls []Call, onEvent OnEvent) models.BatchSummary {
	results := make([]models.CallResult, len(calls))
	jobs := make(chan int, len(calls))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var completed int

	startTime := time.Now()

	for w := 0; w < r.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if onEvent != nil {
					onEvent(Event{Type: EventStarting, Call: calls[i], Index: i, Total: len(calls)})
				}

				res := r.execute(ctx, calls[i])
				results[i] = res

				mu.Lock()
				completed++
				done := completed
				mu.Unlock()

				if onEvent != nil {
					onEvent(Event{Type: EventCompleted, Call: calls[i], Result: &res, Index: i, Total: len(calls), Completed: done})
				}
			}
		}()
	}

	for i := range calls {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	summary := models.NewBatchSummary(r.config.Concurrency, r.config.RateLimit)
	for _, res := range results {
		summary.AddResult(res)
	}
	summary.Finalize(time.Since(startTime))

	r.log.WithFields(logrus.Fields{
		"calls":     summary.TotalCalls,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("batch completed")

	return summary
}

// execute runs a single call and never fails: every error becomes a
// classified result
func (r *Runner) execute(ctx context.Context, call Call) models.CallResult {
	result := models.CallResult{Operation: call.Operation}
	if op, err := r.registry.Get(call.Operation); err == nil {
		result.Method = op.Method
		result.Path = op.Path
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return failed(result, apierr.Transport(call.Operation, err))
		}
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	res, err := r.registry.Invoke(ctx, r.invoker, call.Operation, call.Input)
	result.Duration = time.Since(startTime)

	if err != nil {
		return failed(result, err)
	}

	result.Path = res.Path
	result.StatusCode = res.StatusCode
	return result
}

func failed(result models.CallResult, err error) models.CallResult {
	result.Error = err.Error()
	result.Kind = string(apierr.KindUnclassified)

	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		result.Kind = string(apiErr.Kind)
		result.StatusCode = apiErr.Status
	}
	return result
}
