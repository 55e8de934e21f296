// Package evidence builds evidence payloads and submits them to the oracle,
// one item at a time or as a single atomic batch.
package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/ruteri/challenge-oracle-client/metrics"
	"github.com/ruteri/challenge-oracle-client/permission"
)

// StateChecker re-fetches an instance and refuses terminal ones.
// It is implemented by *instance.Manager.
type StateChecker interface {
	EnsureOpen(ctx context.Context, instanceID string) (interfaces.InstanceState, error)
}

// SubmitterConfig holds the optional gates of a Submitter.
type SubmitterConfig struct {
	// Permissions is consulted for PermissionSubmitEvidence before every submission.
	// nil disables the check.
	Permissions interfaces.PermissionGate

	// Caller is the account whose permission is checked.
	Caller string

	// Features gates the batch entry point. nil means enabled.
	Features interfaces.FeatureGate
}

// Submitter sends evidence. Before every submission it validates the request,
// re-fetches the instance state and checks the caller's permission, in that
// order, and issues no submission request if any of these fails.
type Submitter struct {
	oracle    interfaces.EvidenceSink
	instances StateChecker
	cfg       SubmitterConfig
	log       *slog.Logger
}

func NewSubmitter(oracle interfaces.EvidenceSink, instances StateChecker, cfg SubmitterConfig, log *slog.Logger) *Submitter {
	return &Submitter{
		oracle:    oracle,
		instances: instances,
		cfg:       cfg,
		log:       log,
	}
}

// Enabled reports whether the feature gate allows the challenge flow.
func (s *Submitter) Enabled(ctx context.Context) bool {
	return s.cfg.Features == nil || s.cfg.Features.Enabled(ctx)
}

// Submit sends one evidence item for instanceID.
func (s *Submitter) Submit(ctx context.Context, instanceID string, item interfaces.EvidenceItem) (json.RawMessage, error) {
	if err := ValidateItem(0, item); err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, instanceID); err != nil {
		return nil, err
	}

	data, err := s.oracle.SubmitEvidence(ctx, instanceID, item)
	if err != nil {
		metrics.EvidenceSubmissions.WithLabelValues("single", "failed").Inc()
		s.log.Warn("Evidence submission failed", "instanceID", instanceID, "challengeID", item.ChallengeID, "err", err)
		return nil, err
	}

	metrics.EvidenceSubmissions.WithLabelValues("single", "ok").Inc()
	s.log.Debug("Evidence submitted", "instanceID", instanceID, "challengeID", item.ChallengeID)
	return data, nil
}

// SubmitBatch sends all items in one request. The returned result is always
// non-nil and describes the failure when err is not nil.
func (s *Submitter) SubmitBatch(ctx context.Context, instanceID string, items []interfaces.EvidenceItem) (*interfaces.BatchResult, error) {
	result := &interfaces.BatchResult{InstanceID: instanceID}

	if !s.Enabled(ctx) {
		return failed(result, interfaces.ErrServiceNotEnabled)
	}
	if instanceID == "" {
		return failed(result, &interfaces.ValidationError{Index: -1, Field: "challengeInstanceId", Reason: "challengeInstanceId is required"})
	}
	if err := ValidateBatch(items); err != nil {
		return failed(result, err)
	}
	if err := s.precheck(ctx, instanceID); err != nil {
		return failed(result, err)
	}

	data, err := s.oracle.SubmitEvidenceBatch(ctx, instanceID, items)
	if err != nil {
		metrics.EvidenceSubmissions.WithLabelValues("batch", "failed").Inc()
		s.log.Warn("Batch evidence submission failed", "instanceID", instanceID, "items", len(items), "err", err)
		return failed(result, err)
	}

	metrics.EvidenceSubmissions.WithLabelValues("batch", "ok").Inc()
	s.log.Info("Batch evidence submitted", "instanceID", instanceID, "items", len(items))

	result.Success = true
	result.Submitted = len(items)
	result.Data = data
	result.Message = fmt.Sprintf("submitted %d responses", len(items))
	return result, nil
}

func (s *Submitter) precheck(ctx context.Context, instanceID string) error {
	if _, err := s.instances.EnsureOpen(ctx, instanceID); err != nil {
		return err
	}
	return permission.Require(ctx, s.cfg.Permissions, s.cfg.Caller, interfaces.PermissionSubmitEvidence)
}

func failed(result *interfaces.BatchResult, err error) (*interfaces.BatchResult, error) {
	result.Success = false
	result.Error = err.Error()
	result.Hint = interfaces.Hint(err)

	var oerr *interfaces.OracleError
	if errors.As(err, &oerr) && oerr.Message != "" {
		result.Message = oerr.Message
	}
	return result, err
}
