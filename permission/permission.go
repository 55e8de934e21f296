// Package permission checks role registry permissions before evidence is submitted.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/challenge-oracle-client/interfaces"
)

// RoleRegistryABI is the read-only subset of the role registry used here.
const RoleRegistryABI = `[{"type":"function","name":"hasPermission","stateMutability":"view","inputs":[{"name":"account","type":"address"},{"name":"permission","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}]`

// Static grants or denies every permission.
type Static bool

var _ interfaces.PermissionGate = Static(false)

func (s Static) HasPermission(ctx context.Context, caller string, permission interfaces.Permission) (bool, error) {
	return bool(s), nil
}

// ID is the on-chain identifier of a permission, keccak256 of its name.
func ID(permission interfaces.Permission) [32]byte {
	return crypto.Keccak256Hash([]byte(permission))
}

// RegistryGate asks an on-chain role registry through eth_call.
type RegistryGate struct {
	contract *bind.BoundContract
	address  common.Address
	log      *slog.Logger
}

var _ interfaces.PermissionGate = (*RegistryGate)(nil)

// NewRegistryGate binds the role registry deployed at address.
func NewRegistryGate(caller bind.ContractCaller, address common.Address, log *slog.Logger) (*RegistryGate, error) {
	parsed, err := abi.JSON(strings.NewReader(RoleRegistryABI))
	if err != nil {
		return nil, err
	}

	return &RegistryGate{
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
		address:  address,
		log:      log,
	}, nil
}

// HasPermission reports whether caller, a hex account address, holds permission.
func (g *RegistryGate) HasPermission(ctx context.Context, caller string, permission interfaces.Permission) (bool, error) {
	if !common.IsHexAddress(caller) {
		return false, fmt.Errorf("invalid caller address: %q", caller)
	}

	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := g.contract.Call(opts, &out, "hasPermission", common.HexToAddress(caller), ID(permission)); err != nil {
		return false, fmt.Errorf("could not query role registry %s: %w", g.address.Hex(), err)
	}
	if len(out) != 1 {
		return false, fmt.Errorf("unexpected role registry response length %d", len(out))
	}

	granted, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected role registry response type %T", out[0])
	}

	g.log.Debug("Checked registry permission", "caller", caller, "permission", permission, "granted", granted)
	return granted, nil
}

// Require fails with interfaces.ErrPermissionDenied unless caller holds permission.
func Require(ctx context.Context, gate interfaces.PermissionGate, caller string, permission interfaces.Permission) error {
	if gate == nil {
		return nil
	}
	granted, err := gate.HasPermission(ctx, caller, permission)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", interfaces.ErrPermissionDenied, permission, err)
	}
	if !granted {
		return fmt.Errorf("%w: %s lacks %s", interfaces.ErrPermissionDenied, caller, permission)
	}
	return nil
}
