/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package retry runs a unit of work against the cluster with exponential
// backoff, classifying each failure as retryable, non-retryable, or an
// incomplete-commit whose outcome is unknown and must never be retried.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/hashicorp/go-multierror"

	liberr "github/sabouaram/boltdriver/errors"
	"github/sabouaram/boltdriver/metrics"
)

// Classification is the outcome a Classifier assigns to one attempt's error.
type Classification int

const (
	// Retryable means the same unit of work may be tried again against a
	// possibly different server.
	Retryable Classification = iota
	// NonRetryable means retrying cannot help (e.g. a syntax error) and the
	// error should be returned to the caller immediately.
	NonRetryable
	// IncompleteCommit means the connection was lost while a COMMIT was in
	// flight: whether the server applied it is unknown, so retrying the
	// work could duplicate it.
	IncompleteCommit
)

// Classifier decides what an attempt's error means for the retry loop.
type Classifier func(err error) Classification

// DefaultClassifier treats disconnects as retryable, a disconnect during
// commit as an incomplete commit, a server-reported error whose code class
// is transient/leadership-change/expired-authorization as retryable, and
// everything else as non-retryable.
func DefaultClassifier(err error) Classification {
	switch {
	case liberr.IsCode(err, liberr.BoltDisconnectDuringCommit):
		return IncompleteCommit
	case liberr.IsCode(err, liberr.BoltDisconnect), liberr.IsCode(err, liberr.BoltTimeout):
		return Retryable
	}

	var se *liberr.ServerError
	if errors.As(err, &se) && se.Retryable() {
		return Retryable
	}

	return NonRetryable
}

// Policy configures the backoff schedule.
type Policy struct {
	MaxElapsed  time.Duration
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Classify    Classifier

	// Metrics, if non-nil, counts every retried attempt across all callers
	// sharing this policy.
	Metrics *metrics.Collectors
}

// DefaultPolicy matches the reference client's 30-second budget with a
// doubling backoff capped at one second, jittered by up to 20%.
func DefaultPolicy() Policy {
	return Policy{
		MaxElapsed:  30 * time.Second,
		InitialWait: 1 * time.Millisecond,
		MaxWait:     1 * time.Second,
		Multiplier:  2,
		Classify:    DefaultClassifier,
	}
}

// Work is one attempt of the unit of work the executor retries.
type Work func(ctx context.Context) error

// Run executes work, retrying on Retryable errors until MaxElapsed passes or
// a NonRetryable/IncompleteCommit error is hit. All accumulated attempt
// errors are returned together when the budget is exhausted.
func Run(ctx context.Context, p Policy, work Work) error {
	if p.Classify == nil {
		p.Classify = DefaultClassifier
	}

	start := time.Now()
	wait := p.InitialWait
	var errs *multierror.Error

	for attempt := 1; ; attempt++ {
		err := work(ctx)
		if err == nil {
			return nil
		}

		errs = multierror.Append(errs, err)

		switch p.Classify(err) {
		case IncompleteCommit:
			return liberr.RetryIncompleteCommit.Error(errs)
		case NonRetryable:
			return liberr.RetryNonRetryable.Error(errs)
		}

		if time.Since(start) >= p.MaxElapsed {
			return liberr.RetryExhausted.Error(errs)
		}

		if p.Metrics != nil {
			p.Metrics.RetryAttemptsTotal.Inc()
		}

		sleep := jitter(wait)
		select {
		case <-ctx.Done():
			return liberr.RetryExhausted.Error(multierror.Append(errs, ctx.Err()))
		case <-time.After(sleep):
		}

		wait = time.Duration(float64(wait) * p.Multiplier)
		if wait > p.MaxWait {
			wait = p.MaxWait
		}
	}
}

// jitter returns d reduced by a random amount up to 20%, the same spread the
// reference client applies to its own backoff schedule.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	reduction := time.Duration(rand.Int63n(int64(d) / 5))
	return d - reduction
}
