package orchestrator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ChallengePolicy selects which mandatory challenges receive evidence.
type ChallengePolicy string

const (
	SubmitAll    ChallengePolicy = "all"
	SubmitFirstN ChallengePolicy = "first-n"
)

// SubmissionMode selects one request per item or one atomic batch.
type SubmissionMode string

const (
	ModeSingle SubmissionMode = "single"
	ModeBatch  SubmissionMode = "batch"
)

// Config tunes an orchestration run. Zero values select the defaults.
type Config struct {
	ChallengesToSubmit ChallengePolicy `validate:"oneof=all first-n"`

	// FirstN is the number of challenges submitted under SubmitFirstN.
	FirstN int `validate:"required_if=ChallengesToSubmit first-n,gte=0"`

	SubmissionMode SubmissionMode `validate:"oneof=single batch"`

	PollAttempts int           `validate:"gte=0"`
	PollInterval time.Duration `validate:"gte=0"`

	// Concurrency bounds RunAll. 1 runs the sets sequentially.
	Concurrency int `validate:"gte=1"`
}

// ParsePolicy accepts "all", "first-n" and the shorthand "first-<n>".
func ParsePolicy(s string) (ChallengePolicy, int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", string(SubmitAll):
		return SubmitAll, 0, nil
	case string(SubmitFirstN):
		return SubmitFirstN, 0, nil
	}
	if rest, ok := strings.CutPrefix(s, "first-"); ok {
		n, err := strconv.Atoi(rest)
		if err == nil && n > 0 {
			return SubmitFirstN, n, nil
		}
	}
	return "", 0, fmt.Errorf("unknown challenge policy %q", s)
}

func (c Config) withDefaults() Config {
	if c.ChallengesToSubmit == "" {
		c.ChallengesToSubmit = SubmitAll
	}
	if c.SubmissionMode == "" {
		c.SubmissionMode = ModeBatch
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c Config) Validate() error {
	if err := validate.Struct(c.withDefaults()); err != nil {
		return fmt.Errorf("invalid orchestrator config: %w", err)
	}
	return nil
}

// Select narrows challenges according to the policy, preserving order.
func (c Config) Select(challenges []string) []string {
	if c.ChallengesToSubmit == SubmitFirstN && c.FirstN < len(challenges) {
		return challenges[:c.FirstN]
	}
	return challenges
}
