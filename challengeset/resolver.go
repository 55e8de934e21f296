// Package challengeset resolves challenge set codes to their definitions, from a
// local catalog first and the oracle second.
package challengeset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// Resolver looks up challenge sets. Either source may be nil.
type Resolver struct {
	catalog *Catalog
	remote  interfaces.ChallengeSetLookup
	log     *slog.Logger
}

func NewResolver(catalog *Catalog, remote interfaces.ChallengeSetLookup, log *slog.Logger) *Resolver {
	return &Resolver{
		catalog: catalog,
		remote:  remote,
		log:     log,
	}
}

// Resolve returns the set named code or an error matching interfaces.ErrNotFound.
// Transport failures of the remote lookup are returned as they are.
func (r *Resolver) Resolve(ctx context.Context, code string) (*interfaces.ChallengeSet, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty challenge set code", interfaces.ErrNotFound)
	}

	if set, ok := r.catalog.Lookup(code); ok {
		r.log.Debug("Resolved challenge set from catalog", "code", code)
		return set, nil
	}

	if r.remote == nil {
		return nil, fmt.Errorf("%w: challenge set %s", interfaces.ErrNotFound, code)
	}

	set, err := r.remote.GetChallengeSet(ctx, code)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			r.log.Info("Challenge set not found", "code", code)
		}
		return nil, err
	}

	r.log.Debug("Resolved challenge set from oracle", "code", code, "challenges", len(set.MandatoryChallenges))
	return set, nil
}
