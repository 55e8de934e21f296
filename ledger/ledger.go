// Package ledger records every DID used by the client so that an identifier is
// never registered twice. Backends are selected by URI:
//
//	memory://                 process-local, lost on exit
//	bbolt:///var/lib/dids.db  single host, survives restarts
//	redis://host:6379/0       shared between client instances (valkey or redis)
package ledger

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// Open creates the ledger named by uri.
func Open(ctx context.Context, uri string) (interfaces.IdentityLedger, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger URI: %w", err)
	}

	switch u.Scheme {
	case "", "memory":
		return NewMemory(), nil
	case "bbolt":
		path := u.Path
		if u.Host != "" {
			path = u.Host + path
		}
		return OpenBolt(path)
	case "redis", "rediss", "valkey":
		if u.Scheme == "valkey" {
			u.Scheme = "redis"
		}
		return OpenValkey(ctx, u.String(), "")
	default:
		return nil, fmt.Errorf("unsupported ledger scheme: %s", u.Scheme)
	}
}

// Memory is an in-process ledger.
type Memory struct {
	mu   sync.Mutex
	seen map[interfaces.DID]time.Time
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[interfaces.DID]time.Time)}
}

func (m *Memory) Claim(ctx context.Context, did interfaces.DID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[did]; ok {
		return fmt.Errorf("%w: %s", interfaces.ErrIdentityReused, did)
	}
	m.seen[did] = time.Now()
	return nil
}

func (m *Memory) Seen(ctx context.Context, did interfaces.DID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.seen[did]
	return ok, nil
}
