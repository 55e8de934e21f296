package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ruteri/challenge-oracle-client/interfaces"
	"go.etcd.io/bbolt"
)

var didBucket = []byte("dids")

// Bolt keeps the ledger in a bbolt file. Each claimed DID is a key of the
// "dids" bucket whose value is the claim time as time.RFC3339Nano.
//
// bbolt takes an exclusive file lock, so only one process can use a ledger
// file at a time. Use the valkey backend to share a ledger.
type Bolt struct {
	bdb *bbolt.DB
}

// OpenBolt opens or creates the ledger file at path.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, fmt.Errorf("bbolt ledger: empty path")
	}

	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt ledger: can't open %q: %w", path, err)
	}

	if err := bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(didBucket)
		return err
	}); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("bbolt ledger: can't create bucket: %w", err)
	}

	return &Bolt{bdb: bdb}, nil
}

func (b *Bolt) Claim(ctx context.Context, did interfaces.DID) error {
	return b.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(didBucket)
		if bkt.Get([]byte(did)) != nil {
			return fmt.Errorf("%w: %s", interfaces.ErrIdentityReused, did)
		}
		return bkt.Put([]byte(did), []byte(time.Now().UTC().Format(time.RFC3339Nano)))
	})
}

func (b *Bolt) Seen(ctx context.Context, did interfaces.DID) (bool, error) {
	var seen bool
	err := b.bdb.View(func(tx *bbolt.Tx) error {
		seen = tx.Bucket(didBucket).Get([]byte(did)) != nil
		return nil
	})
	return seen, err
}

// Close releases the file lock.
func (b *Bolt) Close() error {
	return b.bdb.Close()
}
