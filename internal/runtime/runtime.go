package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vinodismyname/mcpsales/config"
	"golang.org/x/sync/semaphore"
)

// Limits captures the concurrency and dataset guardrails configured for the server.
type Limits struct {
	MaxConcurrentRequests int
	MaxOpenDatasets       int

	MaxPayloadBytes int
	MaxFileBytes    int64
	MaxRows         int
	PageRowLimit    int

	OperationTimeout      time.Duration
	AcquireRequestTimeout time.Duration
	FetchTimeout          time.Duration
}

// NewLimits fills every bound from config defaults. Non-positive counts fall
// back to their defaults too.
func NewLimits(maxConcurrentRequests, maxOpenDatasets int) Limits {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = config.DefaultMaxConcurrentRequests
	}
	if maxOpenDatasets <= 0 {
		maxOpenDatasets = config.DefaultMaxOpenDatasets
	}

	return Limits{
		MaxConcurrentRequests: maxConcurrentRequests,
		MaxOpenDatasets:       maxOpenDatasets,
		MaxPayloadBytes:       config.DefaultMaxPayloadBytes,
		MaxFileBytes:          config.DefaultMaxFileBytes,
		MaxRows:               config.DefaultMaxRows,
		PageRowLimit:          config.DefaultPageRowLimit,
		OperationTimeout:      config.DefaultOperationTimeout,
		AcquireRequestTimeout: config.DefaultAcquireRequestTimeout,
		FetchTimeout:          config.DefaultFetchTimeout,
	}
}

// Controller coordinates runtime semaphores for request and dataset guardrails.
type Controller struct {
	limits           Limits
	requestSemaphore *semaphore.Weighted
	datasetSemaphore *semaphore.Weighted
	inFlight         atomic.Int64
}

// NewController sizes the request and dataset semaphores from limits.
func NewController(limits Limits) *Controller {
	return &Controller{
		limits:           limits,
		requestSemaphore: semaphore.NewWeighted(int64(limits.MaxConcurrentRequests)),
		datasetSemaphore: semaphore.NewWeighted(int64(limits.MaxOpenDatasets)),
	}
}

// AcquireRequest blocks until a tool call slot frees up or ctx ends.
func (c *Controller) AcquireRequest(ctx context.Context) error {
	if err := c.requestSemaphore.Acquire(ctx, 1); err != nil {
		return err
	}
	c.inFlight.Add(1)
	return nil
}

// ReleaseRequest returns a slot taken by AcquireRequest.
func (c *Controller) ReleaseRequest() {
	c.inFlight.Add(-1)
	c.requestSemaphore.Release(1)
}

// InFlight reports how many request slots are currently held.
func (c *Controller) InFlight() int {
	return int(c.inFlight.Load())
}

// AcquireDataset reserves an open dataset slot without waiting. A full
// server reports busy immediately rather than queueing loads.
func (c *Controller) AcquireDataset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.datasetSemaphore.TryAcquire(1) {
		return ErrDatasetCapacity
	}
	return nil
}

// ReleaseDataset frees an open dataset slot.
func (c *Controller) ReleaseDataset() {
	c.datasetSemaphore.Release(1)
}

// LimitsSnapshot returns a copy of the configured bounds.
func (c *Controller) LimitsSnapshot() Limits {
	return c.limits
}
