// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collaborator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first.
	// Default: 2
	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=10"`

	// InitialBackoff is the wait before the first retry.
	// Default: 200ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the wait between retries.
	// Default: 2s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffFactor is the multiplier for exponential backoff.
	// Default: 2.0
	BackoffFactor float64 `yaml:"backoff_factor"`

	// JitterFactor is the maximum jitter as a fraction of backoff (0-1).
	// Default: 0.2
	JitterFactor float64 `yaml:"jitter_factor"`
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.BackoffFactor < 1.0 {
		c.BackoffFactor = d.BackoffFactor
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		c.JitterFactor = d.JitterFactor
	}
	return c
}

// Retrying wraps an Evaluator with bounded retries and an optional rate limit.
type Retrying struct {
	inner   Evaluator
	cfg     RetryConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRetrying creates a retrying evaluator. limiter may be nil.
func NewRetrying(inner Evaluator, cfg RetryConfig, limiter *rate.Limiter, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{inner: inner, cfg: cfg.withDefaults(), limiter: limiter, logger: logger}
}

// Evaluate calls the wrapped evaluator, retrying retryable failures.
//
// Outputs:
//
//	*StructuredResult - The first successful result.
//	error - The last failure once retries are exhausted or the context ends.
func (r *Retrying) Evaluate(ctx context.Context, pc PromptContext) (*StructuredResult, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, contextError(err, lastErr)
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: rate limiter: %v", datatypes.ErrUpstreamTimeout, err)
			}
		}

		res, err := r.inner.Evaluate(ctx, pc)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == r.cfg.MaxRetries {
			break
		}

		r.logger.Debug("retrying evaluator call",
			slog.String("task", string(pc.Task)),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return nil, contextError(ctx.Err(), lastErr)
		case <-time.After(jittered(backoff, r.cfg.JitterFactor)):
		}
		backoff = nextBackoff(backoff, r.cfg.BackoffFactor, r.cfg.MaxBackoff)
	}

	return nil, lastErr
}

// IsRetryable reports whether an evaluator error is worth another attempt.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, datatypes.ErrInvalidInput):
		return false
	default:
		return true
	}
}

func contextError(ctxErr, lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("%w: %v (last error: %v)", datatypes.ErrUpstreamTimeout, ctxErr, lastErr)
	}
	return fmt.Errorf("%w: %v", datatypes.ErrUpstreamTimeout, ctxErr)
}

func jittered(base time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return base
	}
	jitter := (rand.Float64()*2 - 1) * jitterFactor
	return time.Duration(float64(base) * (1.0 + jitter))
}

func nextBackoff(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
