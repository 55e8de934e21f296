package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/challenge-oracle-client/api"
	"github.com/ruteri/challenge-oracle-client/attestation"
	"github.com/ruteri/challenge-oracle-client/common"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second
	flowTimeout := cCtx.Duration(FlowTimeoutFlag.Name)

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             flowTimeout + 10*time.Second,
		FlowTimeout:              flowTimeout,
	}
}

var OracleURLFlag = &cli.StringFlag{
	Name:    "oracle-url",
	Value:   "http://localhost:3000",
	EnvVars: []string{"ORACLE_BASE_URL"},
	Usage:   "oracle base URL, or srv://_service._proto.domain to discover it through DNS SRV",
}

var DNSServerFlag = &cli.StringFlag{
	Name:    "dns-server",
	EnvVars: []string{"ORACLE_DNS_SERVER"},
	Usage:   "host:port of the DNS server used for srv:// oracle URLs (default: first resolv.conf server)",
}

var OracleTimeoutFlag = &cli.DurationFlag{
	Name:    "oracle-timeout",
	Value:   30 * time.Second,
	EnvVars: []string{"ORACLE_REQUEST_TIMEOUT"},
	Usage:   "timeout of a single oracle request",
}

var OracleRetriesFlag = &cli.Uint64Flag{
	Name:    "oracle-retries",
	Value:   2,
	EnvVars: []string{"ORACLE_MAX_RETRIES"},
	Usage:   "transport retries of idempotent oracle requests (0 disables retries)",
}

var FlowEnabledFlag = &cli.BoolFlag{
	Name:    "challenge-flow-enabled",
	Value:   true,
	EnvVars: []string{"CHALLENGE_FLOW_ENABLED"},
	Usage:   "enable the challenge flow (static flag, ignored when a LaunchDarkly SDK key is set)",
}

var LaunchDarklySDKKeyFlag = &cli.StringFlag{
	Name:    "launchdarkly-sdk-key",
	EnvVars: []string{"LAUNCHDARKLY_SDK_KEY"},
	Usage:   "evaluate the challenge flow flag through LaunchDarkly",
}

var LaunchDarklyFlagKeyFlag = &cli.StringFlag{
	Name:    "launchdarkly-flag-key",
	Value:   "challenge_flow_enabled",
	EnvVars: []string{"LAUNCHDARKLY_FLAG_KEY"},
	Usage:   "LaunchDarkly flag gating the challenge flow",
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	EnvVars: []string{"ETH_RPC_URL"},
	Usage:   "address to connect to RPC",
}

var RoleRegistryFlag = &cli.StringFlag{
	Name:    "role-registry",
	EnvVars: []string{"ROLE_REGISTRY_ADDRESS"},
	Usage:   "role registry contract checked for the SUBMIT_EVIDENCE permission; empty allows every caller",
}

var CallerAddressFlag = &cli.StringFlag{
	Name:    "caller-address",
	EnvVars: []string{"CALLER_ADDRESS"},
	Usage:   "account whose registry permission is checked before submitting evidence",
}

var LedgerURIFlag = &cli.StringFlag{
	Name:    "identity-ledger",
	Value:   "memory://",
	EnvVars: []string{"IDENTITY_LEDGER_URI"},
	Usage:   "ledger of used DIDs: memory://, bbolt:///path/to/file.db or redis://host:6379/0",
}

var ArchiveURIsFlag = &cli.StringSliceFlag{
	Name:    "archive",
	EnvVars: []string{"REPORT_ARCHIVE_URIS"},
	Usage:   "archive flow and batch reports to file://, s3:// or ipfs:// backends (repeatable)",
}

var CatalogFlag = &cli.StringFlag{
	Name:    "catalog",
	EnvVars: []string{"CHALLENGE_CATALOG"},
	Usage:   "YAML file of challenge sets consulted before the oracle",
}

var FingerprintSchemeFlag = &cli.StringFlag{
	Name:    "fingerprint-scheme",
	Value:   "legacy",
	EnvVars: []string{"FINGERPRINT_SCHEME"},
	Usage:   "evidence fingerprint digest: legacy or keccak256",
}

var DIDMethodFlag = &cli.StringFlag{
	Name:    "did-method",
	Value:   "oracle",
	EnvVars: []string{"DID_METHOD"},
	Usage:   "method of minted identifiers (did:<method>:<uuid>)",
}

var ChallengesToSubmitFlag = &cli.StringFlag{
	Name:    "challenges",
	Value:   "all",
	EnvVars: []string{"CHALLENGES_TO_SUBMIT"},
	Usage:   "challenges receiving evidence: all, first-n (with --first-n) or first-<n>",
}

var FirstNFlag = &cli.IntFlag{
	Name:    "first-n",
	Value:   2,
	EnvVars: []string{"CHALLENGES_FIRST_N"},
	Usage:   "number of challenges submitted under the first-n policy",
}

var SubmissionModeFlag = &cli.StringFlag{
	Name:    "submission-mode",
	Value:   "batch",
	EnvVars: []string{"SUBMISSION_MODE"},
	Usage:   "single or batch",
}

var PollAttemptsFlag = &cli.IntFlag{
	Name:    "poll-attempts",
	Value:   attestation.DefaultMaxAttempts,
	EnvVars: []string{"POLL_ATTEMPTS"},
	Usage:   "attestation lookups before giving up",
}

var PollIntervalFlag = &cli.DurationFlag{
	Name:    "poll-interval",
	Value:   attestation.DefaultInterval,
	EnvVars: []string{"POLL_INTERVAL"},
	Usage:   "delay between attestation lookups",
}

var ConcurrencyFlag = &cli.IntFlag{
	Name:    "concurrency",
	Value:   1,
	EnvVars: []string{"FLOW_CONCURRENCY"},
	Usage:   "challenge sets run in parallel",
}

var FlowTimeoutFlag = &cli.DurationFlag{
	Name:    "flow-timeout",
	Value:   2 * time.Minute,
	EnvVars: []string{"FLOW_TIMEOUT"},
	Usage:   "bound of a single challenge flow run",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var ServerFlags = []cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
	FlowTimeoutFlag,
}

var OracleFlags = []cli.Flag{
	OracleURLFlag,
	DNSServerFlag,
	OracleTimeoutFlag,
	OracleRetriesFlag,
}

// FlowFlags configure the orchestrator and its collaborators.
var FlowFlags = []cli.Flag{
	FlowEnabledFlag,
	LaunchDarklySDKKeyFlag,
	LaunchDarklyFlagKeyFlag,
	RpcAddrFlag,
	RoleRegistryFlag,
	CallerAddressFlag,
	LedgerURIFlag,
	ArchiveURIsFlag,
	CatalogFlag,
	FingerprintSchemeFlag,
	DIDMethodFlag,
	ChallengesToSubmitFlag,
	FirstNFlag,
	SubmissionModeFlag,
	PollAttemptsFlag,
	PollIntervalFlag,
	ConcurrencyFlag,
}
