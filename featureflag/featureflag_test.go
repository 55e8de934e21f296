package featureflag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	"github.com/stretchr/testify/assert"
)

type fakeEvaluator struct {
	value   bool
	err     error
	lastKey string
	lastCtx ldcontext.Context
}

func (f *fakeEvaluator) BoolVariation(key string, ctx ldcontext.Context, defaultVal bool) (bool, error) {
	f.lastKey = key
	f.lastCtx = ctx
	if f.err != nil {
		return defaultVal, f.err
	}
	return f.value, nil
}

func TestStatic(t *testing.T) {
	assert.True(t, Static(true).Enabled(context.Background()))
	assert.False(t, Static(false).Enabled(context.Background()))
}

func TestLaunchDarkly(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := &fakeEvaluator{value: true}
	gate := newLaunchDarkly(fake, LaunchDarklyOpts{ContextKind: "service", ContextKey: "gw-1"}, logger)

	assert.True(t, gate.Enabled(context.Background()))
	assert.Equal(t, DefaultFlagKey, fake.lastKey)
	assert.Equal(t, "gw-1", fake.lastCtx.Key())
	assert.Equal(t, ldcontext.Kind("service"), fake.lastCtx.Kind())

	fake.value = false
	assert.False(t, gate.Enabled(context.Background()))

	fake.err = errors.New("flag not found")
	assert.False(t, gate.Enabled(context.Background()))

	fallbackOn := newLaunchDarkly(fake, LaunchDarklyOpts{Fallback: true}, logger)
	assert.True(t, fallbackOn.Enabled(context.Background()))
	assert.NoError(t, fallbackOn.Close())
}

func TestNewLaunchDarkly_RequiresKey(t *testing.T) {
	_, err := NewLaunchDarkly(LaunchDarklyOpts{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
