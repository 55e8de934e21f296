// Package orchestrator drives a DID through the complete challenge flow:
// challenge set resolution, identity registration, instance creation,
// evidence submission and attestation polling.
//
// Each run produces a TestResult describing how far it got. Stages run
// strictly in order and the first failure ends the run; its error is recorded
// in the result rather than returned, so that partial progress is always
// reported.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/ruteri/challenge-oracle-client/attestation"
	"github.com/ruteri/challenge-oracle-client/challengeset"
	"github.com/ruteri/challenge-oracle-client/evidence"
	"github.com/ruteri/challenge-oracle-client/identity"
	"github.com/ruteri/challenge-oracle-client/instance"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/ruteri/challenge-oracle-client/metrics"
	"github.com/ruteri/challenge-oracle-client/storage"
	"golang.org/x/sync/errgroup"
)

// Stages reported in TestResult.Stage and in the flow outcome metric.
const (
	StageDisabled    = "disabled"
	StageResolve     = "resolve"
	StageRegister    = "register"
	StageCreate      = "create"
	StageTerminal    = "terminal"
	StageSubmit      = "submit"
	StagePoll        = "poll"
	StageAttested    = "attested"
	StageNotAttested = "not_attested"
)

// ErrNoChallenges is returned when a challenge set that needs evidence lists
// no mandatory challenges, so there is nothing to submit.
var ErrNoChallenges = errors.New("challenge set has no mandatory challenges")

// TestResult is the outcome of one challenge flow run.
type TestResult struct {
	ChallengeSet      string                   `json:"challengeSet"`
	DID               interfaces.DID           `json:"did,omitempty"`
	DIDRegistered     bool                     `json:"didRegistered"`
	InstanceCreated   bool                     `json:"instanceCreated"`
	InstanceID        string                   `json:"instanceId,omitempty"`
	InstanceState     interfaces.InstanceState `json:"instanceState,omitempty"`
	EvidenceSubmitted bool                     `json:"evidenceSubmitted"`
	EvidenceSkipped   bool                     `json:"evidenceSkipped,omitempty"`
	AttestationFound  bool                     `json:"attestationFound"`
	PollAttempts      int                      `json:"pollAttempts,omitempty"`
	Stage             string                   `json:"stage"`
	ReportID          string                   `json:"reportId,omitempty"`
	Error             string                   `json:"error,omitempty"`
	Hint              string                   `json:"hint,omitempty"`
}

func (r *TestResult) fail(stage string, err error) *TestResult {
	r.Stage = stage
	r.Error = err.Error()
	r.Hint = interfaces.Hint(err)
	return r
}

// DIDSource mints identifiers. *identity.Minter implements it.
type DIDSource interface {
	Mint() interfaces.DID
}

// Deps are the collaborators of an Orchestrator. Only Oracle is required.
type Deps struct {
	Oracle interfaces.Oracle

	// Catalog is consulted before the oracle for challenge set definitions.
	Catalog *challengeset.Catalog

	Minter  DIDSource
	Ledger  interfaces.IdentityLedger
	Builder *evidence.Builder

	Permissions interfaces.PermissionGate
	Caller      string
	Features    interfaces.FeatureGate

	// Clock drives the poll interval. nil uses the wall clock.
	Clock clock.Clock

	// Archive stores every TestResult and BatchResult. nil disables archiving.
	Archive *storage.Archiver
}

// Orchestrator composes the flow stages.
type Orchestrator struct {
	cfg       Config
	resolver  *challengeset.Resolver
	minter    DIDSource
	registrar *identity.Registrar
	instances *instance.Manager
	builder   *evidence.Builder
	submitter *evidence.Submitter
	poller    *attestation.Poller
	archive   *storage.Archiver
	log       *slog.Logger
}

func New(cfg Config, deps Deps, log *slog.Logger) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	minter := deps.Minter
	if minter == nil {
		minter = identity.NewMinter("")
	}
	builder := deps.Builder
	if builder == nil {
		builder = evidence.NewBuilder(evidence.BuilderOpts{})
	}

	instances := instance.NewManager(deps.Oracle, log)
	return &Orchestrator{
		cfg:       cfg,
		resolver:  challengeset.NewResolver(deps.Catalog, deps.Oracle, log),
		minter:    minter,
		registrar: identity.NewRegistrar(deps.Oracle, deps.Ledger, log),
		instances: instances,
		builder:   builder,
		submitter: evidence.NewSubmitter(deps.Oracle, instances, evidence.SubmitterConfig{
			Permissions: deps.Permissions,
			Caller:      deps.Caller,
			Features:    deps.Features,
		}, log),
		poller:  attestation.NewPoller(deps.Oracle, deps.Clock, log),
		archive: deps.Archive,
		log:     log,
	}, nil
}

// Enabled reports whether the challenge flow feature is on.
func (o *Orchestrator) Enabled(ctx context.Context) bool {
	return o.submitter.Enabled(ctx)
}

// RunChallengeFlow runs the flow for code with a freshly minted DID.
func (o *Orchestrator) RunChallengeFlow(ctx context.Context, code string) *TestResult {
	return o.RunChallengeFlowWithDID(ctx, code, "")
}

// RunChallengeFlowWithDID runs the flow for code with did. An empty did is
// minted. The returned result is never nil.
func (o *Orchestrator) RunChallengeFlowWithDID(ctx context.Context, code string, did interfaces.DID) *TestResult {
	result := o.run(ctx, code, did)

	metrics.FlowOutcomes.WithLabelValues(code, result.Stage).Inc()
	o.archiveReport(ctx, interfaces.FlowReportType, result, func(id string) { result.ReportID = id })

	o.log.Info("Challenge flow finished",
		"challengeSet", code,
		"did", result.DID,
		"stage", result.Stage,
		"attestationFound", result.AttestationFound,
		"err", result.Error)
	return result
}

func (o *Orchestrator) run(ctx context.Context, code string, did interfaces.DID) *TestResult {
	result := &TestResult{ChallengeSet: code}

	if !o.Enabled(ctx) {
		return result.fail(StageDisabled, interfaces.ErrServiceNotEnabled)
	}

	set, err := o.resolver.Resolve(ctx, code)
	if err != nil {
		return result.fail(StageResolve, err)
	}

	if did == "" {
		did = o.minter.Mint()
	}
	result.DID = did

	if err := o.registrar.Register(ctx, did, set.Code); err != nil {
		return result.fail(StageRegister, err)
	}
	result.DIDRegistered = true

	inst, err := o.instances.Create(ctx, did, set.Code)
	if err != nil {
		return result.fail(StageCreate, err)
	}
	result.InstanceCreated = true
	result.InstanceID = inst.ID
	result.InstanceState = inst.State

	switch instance.Decide(inst.State) {
	case instance.TerminalFailure:
		return result.fail(StageTerminal, interfaces.NewInstanceTerminalError(inst.ID, inst.State))
	case instance.AutoVerified:
		o.log.Info("Instance auto-verified, skipping evidence", "instanceID", inst.ID, "state", inst.State)
		result.EvidenceSubmitted = true
		result.EvidenceSkipped = true
	default:
		if err := o.submit(ctx, inst, set); err != nil {
			return result.fail(StageSubmit, err)
		}
		result.EvidenceSubmitted = true
	}

	poll, err := o.poller.Poll(ctx, did, o.cfg.PollAttempts, o.cfg.PollInterval)
	if poll != nil {
		result.PollAttempts = poll.Attempts
		result.AttestationFound = poll.Found
	}
	if err != nil {
		return result.fail(StagePoll, err)
	}

	if result.AttestationFound {
		result.Stage = StageAttested
	} else {
		result.Stage = StageNotAttested
	}
	return result
}

func (o *Orchestrator) submit(ctx context.Context, inst *interfaces.ChallengeInstance, set *interfaces.ChallengeSet) error {
	codes := o.cfg.Select(set.MandatoryChallenges)
	if len(codes) == 0 {
		return fmt.Errorf("%w: %s", ErrNoChallenges, set.Code)
	}

	items := o.builder.Items(inst, codes)
	if err := evidence.ValidateBatch(items); err != nil {
		return err
	}

	if o.cfg.SubmissionMode == ModeSingle {
		for _, item := range items {
			if _, err := o.submitter.Submit(ctx, inst.ID, item); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := o.submitter.SubmitBatch(ctx, inst.ID, items)
	return err
}

// SubmitEvidenceBatch submits caller-supplied evidence for an existing instance.
// The returned result is never nil.
func (o *Orchestrator) SubmitEvidenceBatch(ctx context.Context, instanceID string, items []interfaces.EvidenceItem) (*interfaces.BatchResult, error) {
	result, err := o.submitter.SubmitBatch(ctx, instanceID, items)
	o.archiveReport(ctx, interfaces.BatchReportType, result, nil)
	return result, err
}

// RunAll runs the flow for every code with at most Config.Concurrency runs in
// flight. A failing run never stops the others. Results keep the order of codes.
func (o *Orchestrator) RunAll(ctx context.Context, codes []string) []*TestResult {
	results := make([]*TestResult, len(codes))

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, code := range codes {
		g.Go(func() error {
			results[i] = o.RunChallengeFlow(ctx, code)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) archiveReport(ctx context.Context, contentType interfaces.ContentType, report any, onStored func(id string)) {
	if o.archive == nil {
		return
	}
	id, err := o.archive.Archive(ctx, contentType, report)
	if err != nil {
		o.log.Warn("Failed to archive report", "type", contentType.String(), "err", err)
		return
	}
	if onStored != nil {
		onStored(id.String())
	}
}
