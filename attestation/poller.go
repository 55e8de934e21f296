// Package attestation polls the oracle for attestations issued to a DID.
package attestation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/ruteri/challenge-oracle-client/metrics"
)

const (
	DefaultMaxAttempts = 3
	DefaultInterval    = 5 * time.Second
)

// Result is the outcome of a poll. Found is false after exhaustion, which is
// an expected outcome and not an error.
type Result struct {
	Found        bool
	Attempts     int
	Attestations []interfaces.Attestation
}

// Poller queries the attestation endpoint at a fixed interval, without backoff.
type Poller struct {
	oracle interfaces.AttestationLookup
	clock  clock.Clock
	log    *slog.Logger
}

// NewPoller creates a poller. clk may be nil to use the wall clock.
func NewPoller(oracle interfaces.AttestationLookup, clk clock.Clock, log *slog.Logger) *Poller {
	if clk == nil {
		clk = clock.New()
	}
	return &Poller{
		oracle: oracle,
		clock:  clk,
		log:    log,
	}
}

// Poll issues up to maxAttempts lookups for did, sleeping interval between
// them, and stops at the first non-empty list. Zero values select the defaults.
// Failed lookups count as empty attempts. Only cancellation of ctx is returned
// as an error.
func (p *Poller) Poll(ctx context.Context, did interfaces.DID, maxAttempts int, interval time.Duration) (*Result, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	result := &Result{}
	defer func() {
		metrics.PollAttempts.WithLabelValues(strconv.FormatBool(result.Found)).Observe(float64(result.Attempts))
	}()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, interval); err != nil {
				return result, err
			}
		}

		result.Attempts = attempt
		attestations, err := p.oracle.GetAttestations(ctx, did)
		switch {
		case err == nil && len(attestations) > 0:
			result.Found = true
			result.Attestations = attestations
			p.log.Info("Attestation found", "did", did, "attempt", attempt, "count", len(attestations))
			return result, nil
		case err == nil, errors.Is(err, interfaces.ErrNotFound):
			p.log.Debug("No attestation yet", "did", did, "attempt", attempt, "maxAttempts", maxAttempts)
		default:
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			p.log.Warn("Attestation lookup failed", "did", did, "attempt", attempt, "err", err)
		}
	}

	p.log.Info("No attestation after polling", "did", did, "attempts", result.Attempts)
	return result, nil
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	timer := p.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
