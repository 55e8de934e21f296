// Package featureflag decides whether the challenge flow is enabled, either from
// static configuration or from a LaunchDarkly flag evaluated on every check.
package featureflag

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"
	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// DefaultFlagKey is the LaunchDarkly flag consulted by the gate.
const DefaultFlagKey = "challenge_flow_enabled"

// ConnectionTimeout bounds the LaunchDarkly client initialization.
const ConnectionTimeout = 5 * time.Second

// Static is a gate with a fixed answer.
type Static bool

var _ interfaces.FeatureGate = Static(false)

func (s Static) Enabled(ctx context.Context) bool {
	return bool(s)
}

type boolEvaluator interface {
	BoolVariation(key string, context ldcontext.Context, defaultVal bool) (bool, error)
}

// LaunchDarkly evaluates a boolean flag for a server context.
// Evaluation errors fall back to the configured default.
type LaunchDarkly struct {
	client   boolEvaluator
	closer   func() error
	flagKey  string
	ldCtx    ldcontext.Context
	fallback bool
	log      *slog.Logger
}

// LaunchDarklyOpts configures NewLaunchDarkly.
type LaunchDarklyOpts struct {
	SDKKey      string
	FlagKey     string
	ContextKind string
	ContextKey  string
	Fallback    bool
}

// NewLaunchDarkly connects to LaunchDarkly and waits for initialization.
func NewLaunchDarkly(opts LaunchDarklyOpts, log *slog.Logger) (*LaunchDarkly, error) {
	if opts.SDKKey == "" {
		return nil, errors.New("launchdarkly SDK key is required")
	}

	client, err := ld.MakeClient(opts.SDKKey, ConnectionTimeout)
	if err != nil {
		return nil, err
	}
	if !client.Initialized() {
		client.Close()
		return nil, errors.New("launchdarkly client failed to initialize")
	}

	gate := newLaunchDarkly(client, opts, log)
	gate.closer = client.Close
	return gate, nil
}

func newLaunchDarkly(client boolEvaluator, opts LaunchDarklyOpts, log *slog.Logger) *LaunchDarkly {
	flagKey := opts.FlagKey
	if flagKey == "" {
		flagKey = DefaultFlagKey
	}
	kind := opts.ContextKind
	if kind == "" {
		kind = "service"
	}
	key := opts.ContextKey
	if key == "" {
		key = "oracle-client"
	}

	return &LaunchDarkly{
		client:   client,
		flagKey:  flagKey,
		ldCtx:    ldcontext.NewWithKind(ldcontext.Kind(kind), key),
		fallback: opts.Fallback,
		log:      log,
	}
}

func (g *LaunchDarkly) Enabled(ctx context.Context) bool {
	enabled, err := g.client.BoolVariation(g.flagKey, g.ldCtx, g.fallback)
	if err != nil {
		g.log.Warn("Feature flag evaluation failed, using fallback", "flag", g.flagKey, "fallback", g.fallback, "err", err)
		return g.fallback
	}
	return enabled
}

// Close shuts down the LaunchDarkly client.
func (g *LaunchDarkly) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}
