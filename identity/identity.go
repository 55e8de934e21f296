// Package identity mints decentralized identifiers and registers them with the
// oracle against a challenge set.
package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// DefaultMethod is the DID method used when none is configured.
const DefaultMethod = "oracle"

// Minter creates fresh identifiers of the form did:<method>:<uuid>.
type Minter struct {
	method string
}

func NewMinter(method string) *Minter {
	if method == "" {
		method = DefaultMethod
	}
	return &Minter{method: method}
}

// Mint returns a new random DID.
func (m *Minter) Mint() interfaces.DID {
	return interfaces.DID(fmt.Sprintf("did:%s:%s", m.method, uuid.New()))
}

// Registrar registers identities. Registration is never retried: a rejected
// DID is abandoned and a new one minted by the caller.
type Registrar struct {
	oracle interfaces.IdentityRegistration
	ledger interfaces.IdentityLedger
	log    *slog.Logger
}

// NewRegistrar creates a registrar. ledger may be nil to disable reuse checks.
func NewRegistrar(oracle interfaces.IdentityRegistration, ledger interfaces.IdentityLedger, log *slog.Logger) *Registrar {
	return &Registrar{
		oracle: oracle,
		ledger: ledger,
		log:    log,
	}
}

// Register claims did in the ledger and registers it for challengeSet.
// A rejection carries the oracle's reason verbatim in the returned *interfaces.OracleError.
func (r *Registrar) Register(ctx context.Context, did interfaces.DID, challengeSet string) error {
	if !did.Valid() {
		return &interfaces.ValidationError{Index: -1, Field: "did", Reason: fmt.Sprintf("%q is not a did:<method>:<id> identifier", did)}
	}

	if r.ledger != nil {
		if err := r.ledger.Claim(ctx, did); err != nil {
			return err
		}
	}

	if err := r.oracle.RegisterIdentity(ctx, did, challengeSet); err != nil {
		r.log.Warn("Identity registration failed", "did", did, "challengeSet", challengeSet, "err", err)
		return err
	}

	r.log.Info("Identity registered", "did", did, "challengeSet", challengeSet)
	return nil
}
