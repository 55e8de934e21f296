package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ruteri/challenge-oracle-client/interfaces"
	valkey "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "oracle-client:did:"

// Valkey keeps the ledger in valkey or redis so that several client
// processes share it. Claims are atomic through SETNX.
type Valkey struct {
	rdb    *valkey.Client
	prefix string
}

// OpenValkey connects to the server at url and checks it with PING.
func OpenValkey(ctx context.Context, url, prefix string) (*Valkey, error) {
	opts, err := valkey.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("valkey ledger: invalid URL: %w", err)
	}

	rdb := valkey.NewClient(opts)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("can't ping valkey instance: %w", err)
	}

	return NewValkey(rdb, prefix), nil
}

// NewValkey wraps an existing client.
func NewValkey(rdb *valkey.Client, prefix string) *Valkey {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Valkey{rdb: rdb, prefix: prefix}
}

func (v *Valkey) Claim(ctx context.Context, did interfaces.DID) error {
	ok, err := v.rdb.SetNX(ctx, v.prefix+did.String(), time.Now().UTC().Format(time.RFC3339Nano), 0).Result()
	if err != nil {
		return fmt.Errorf("can't claim %q in valkey: %w", did, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrIdentityReused, did)
	}
	return nil
}

func (v *Valkey) Seen(ctx context.Context, did interfaces.DID) (bool, error) {
	n, err := v.rdb.Exists(ctx, v.prefix+did.String()).Result()
	if err != nil {
		return false, fmt.Errorf("can't fetch from valkey: %w", err)
	}
	return n > 0, nil
}

func (v *Valkey) Close() error {
	return v.rdb.Close()
}
