package ledger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLedger(t *testing.T, l interfaces.IdentityLedger) {
	t.Helper()
	ctx := context.Background()
	did := interfaces.DID("did:test:" + filepath.Base(t.Name()))

	seen, err := l.Seen(ctx, did)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, l.Claim(ctx, did))

	seen, err = l.Seen(ctx, did)
	require.NoError(t, err)
	assert.True(t, seen)

	err = l.Claim(ctx, did)
	assert.ErrorIs(t, err, interfaces.ErrIdentityReused)

	require.NoError(t, l.Claim(ctx, did+"-other"))
}

func TestMemory(t *testing.T) {
	exerciseLedger(t, NewMemory())
}

func TestMemory_ConcurrentClaims(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Claim(ctx, "did:test:race") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dids.db")
	l, err := OpenBolt(path)
	require.NoError(t, err)
	exerciseLedger(t, l)
	require.NoError(t, l.Close())

	// claims survive a reopen
	l, err = OpenBolt(path)
	require.NoError(t, err)
	defer l.Close()
	seen, err := l.Seen(context.Background(), "did:test:TestBolt")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestValkey(t *testing.T) {
	url := os.Getenv("VALKEY_URL")
	if url == "" {
		t.Skip("VALKEY_URL not set")
	}
	l, err := OpenValkey(context.Background(), url, "oracle-client-test:"+t.Name()+":")
	require.NoError(t, err)
	defer l.Close()
	exerciseLedger(t, l)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	l, err := Open(ctx, "memory://")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, l)

	l, err = Open(ctx, "bbolt://"+filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	assert.IsType(t, &Bolt{}, l)
	l.(*Bolt).Close()

	_, err = Open(ctx, "ftp://example.com")
	assert.Error(t, err)
}
