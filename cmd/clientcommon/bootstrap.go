// Package clientcommon wires the oracle client, gates, ledger and archive from
// command line flags. It is shared by the oracle-client and oracle-gateway
// binaries.
package clientcommon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/challenge-oracle-client/api/clients"
	"github.com/ruteri/challenge-oracle-client/challengeset"
	"github.com/ruteri/challenge-oracle-client/cmd/flags"
	"github.com/ruteri/challenge-oracle-client/discovery"
	"github.com/ruteri/challenge-oracle-client/evidence"
	"github.com/ruteri/challenge-oracle-client/featureflag"
	"github.com/ruteri/challenge-oracle-client/fingerprint"
	"github.com/ruteri/challenge-oracle-client/identity"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/ruteri/challenge-oracle-client/ledger"
	"github.com/ruteri/challenge-oracle-client/orchestrator"
	"github.com/ruteri/challenge-oracle-client/permission"
	"github.com/ruteri/challenge-oracle-client/storage"
	"github.com/urfave/cli/v2"
)

// Components are the wired collaborators. Close releases the ones holding
// connections or files.
type Components struct {
	Oracle       *clients.OracleClient
	Orchestrator *orchestrator.Orchestrator

	closers []io.Closer
}

func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	return errors.Join(errs...)
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// NewOracleClient resolves the oracle base URL and creates the HTTP client.
func NewOracleClient(cCtx *cli.Context, logger *slog.Logger) (*clients.OracleClient, error) {
	resolver := discovery.NewResolver(cCtx.String(flags.DNSServerFlag.Name), logger)
	baseURL, err := resolver.ResolveBaseURL(cCtx.Context, cCtx.String(flags.OracleURLFlag.Name))
	if err != nil {
		return nil, err
	}

	retries := cCtx.Uint64(flags.OracleRetriesFlag.Name)
	return clients.NewOracleClient(baseURL, &clients.OracleClientOpts{
		Timeout:    cCtx.Duration(flags.OracleTimeoutFlag.Name),
		MaxRetries: &retries,
		Log:        logger,
	}), nil
}

// Build wires an orchestrator from flags. On error everything opened so far
// is closed.
func Build(cCtx *cli.Context, logger *slog.Logger) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	ctx := cCtx.Context
	if ctx == nil {
		ctx = context.Background()
	}

	c.Oracle, err = NewOracleClient(cCtx, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Using oracle", "baseURL", c.Oracle.BaseURL())

	cfg, err := orchestratorConfig(cCtx)
	if err != nil {
		return nil, err
	}

	deps := orchestrator.Deps{
		Oracle: c.Oracle,
		Minter: identity.NewMinter(cCtx.String(flags.DIDMethodFlag.Name)),
		Caller: cCtx.String(flags.CallerAddressFlag.Name),
	}

	scheme, err := fingerprint.ParseScheme(cCtx.String(flags.FingerprintSchemeFlag.Name))
	if err != nil {
		return nil, err
	}
	deps.Builder = evidence.NewBuilder(evidence.BuilderOpts{Scheme: scheme})

	if path := cCtx.String(flags.CatalogFlag.Name); path != "" {
		deps.Catalog, err = challengeset.LoadCatalogFile(path)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded challenge set catalog", "path", path, "sets", deps.Catalog.Len())
	}

	deps.Features, err = c.featureGate(cCtx, logger)
	if err != nil {
		return nil, err
	}

	deps.Permissions, err = c.permissionGate(cCtx, logger)
	if err != nil {
		return nil, err
	}

	deps.Ledger, err = ledger.Open(ctx, cCtx.String(flags.LedgerURIFlag.Name))
	if err != nil {
		return nil, err
	}
	if closer, ok := deps.Ledger.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}

	if uris := cCtx.StringSlice(flags.ArchiveURIsFlag.Name); len(uris) > 0 {
		locations, err := storage.ParseLocations(uris)
		if err != nil {
			return nil, err
		}
		backend, err := storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
		if err != nil {
			return nil, err
		}
		deps.Archive = storage.NewArchiver(backend, logger)
		logger.Info("Archiving reports", "backend", backend.LocationURI())
	}

	c.Orchestrator, err = orchestrator.New(cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func orchestratorConfig(cCtx *cli.Context) (orchestrator.Config, error) {
	policy, n, err := orchestrator.ParsePolicy(cCtx.String(flags.ChallengesToSubmitFlag.Name))
	if err != nil {
		return orchestrator.Config{}, err
	}
	if n == 0 {
		n = cCtx.Int(flags.FirstNFlag.Name)
	}

	return orchestrator.Config{
		ChallengesToSubmit: policy,
		FirstN:             n,
		SubmissionMode:     orchestrator.SubmissionMode(cCtx.String(flags.SubmissionModeFlag.Name)),
		PollAttempts:       cCtx.Int(flags.PollAttemptsFlag.Name),
		PollInterval:       cCtx.Duration(flags.PollIntervalFlag.Name),
		Concurrency:        cCtx.Int(flags.ConcurrencyFlag.Name),
	}, nil
}

func (c *Components) featureGate(cCtx *cli.Context, logger *slog.Logger) (interfaces.FeatureGate, error) {
	sdkKey := cCtx.String(flags.LaunchDarklySDKKeyFlag.Name)
	if sdkKey == "" {
		return featureflag.Static(cCtx.Bool(flags.FlowEnabledFlag.Name)), nil
	}

	gate, err := featureflag.NewLaunchDarkly(featureflag.LaunchDarklyOpts{
		SDKKey:   sdkKey,
		FlagKey:  cCtx.String(flags.LaunchDarklyFlagKeyFlag.Name),
		Fallback: cCtx.Bool(flags.FlowEnabledFlag.Name),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not initialize LaunchDarkly: %w", err)
	}
	c.closers = append(c.closers, gate)
	return gate, nil
}

func (c *Components) permissionGate(cCtx *cli.Context, logger *slog.Logger) (interfaces.PermissionGate, error) {
	registryAddr := cCtx.String(flags.RoleRegistryFlag.Name)
	if registryAddr == "" {
		return permission.Static(true), nil
	}
	if !ethcommon.IsHexAddress(registryAddr) {
		return nil, fmt.Errorf("invalid role registry address %q", registryAddr)
	}
	if !ethcommon.IsHexAddress(cCtx.String(flags.CallerAddressFlag.Name)) {
		return nil, errors.New("a valid caller address is required with a role registry")
	}

	rpcAddr := cCtx.String(flags.RpcAddrFlag.Name)
	logger.Info("Connecting to Ethereum RPC", "address", rpcAddr)
	client, err := ethclient.DialContext(cCtx.Context, rpcAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC: %w", err)
	}
	c.closers = append(c.closers, closerFunc(client.Close))

	return permission.NewRegistryGate(client, ethcommon.HexToAddress(registryAddr), logger)
}
