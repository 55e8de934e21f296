package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruteri/challenge-oracle-client/api"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/ruteri/challenge-oracle-client/metrics"
)

const maxResponseSize = 4 * 1024 * 1024

// OracleClientOpts configures an OracleClient. Zero values select the defaults.
type OracleClientOpts struct {
	// Timeout bounds every single HTTP request (default 30s).
	Timeout time.Duration

	// MaxRetries caps transport retries of a call. Nil selects the default of 2
	// (3 attempts); a pointer to 0 disables retries.
	MaxRetries *uint64

	// RetryInterval is the constant delay between retries (default 500ms).
	RetryInterval time.Duration

	// HTTPClient overrides the underlying client. Timeout is ignored when set.
	HTTPClient *http.Client

	Log *slog.Logger
}

// OracleClient implements interfaces.Oracle over the oracle's HTTP API.
// Every response is decoded here into either data or a typed *interfaces.OracleError.
type OracleClient struct {
	baseURL       string
	httpClient    *http.Client
	maxRetries    uint64
	retryInterval time.Duration
	log           *slog.Logger
}

var _ interfaces.Oracle = (*OracleClient)(nil)

// NewOracleClient creates a client for the oracle served at baseURL.
func NewOracleClient(baseURL string, opts *OracleClientOpts) *OracleClient {
	if opts == nil {
		opts = &OracleClientOpts{}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	retryInterval := opts.RetryInterval
	if retryInterval == 0 {
		retryInterval = 500 * time.Millisecond
	}
	maxRetries := uint64(2)
	if opts.MaxRetries != nil {
		maxRetries = *opts.MaxRetries
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	return &OracleClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		log:           log,
	}
}

// BaseURL returns the oracle base URL without trailing slash.
func (c *OracleClient) BaseURL() string {
	return c.baseURL
}

// GetChallengeSet fetches challenge-set metadata. Any non-2xx answer is NotFound.
func (c *OracleClient) GetChallengeSet(ctx context.Context, code string) (*interfaces.ChallengeSet, error) {
	const op = "challenge set"
	path := fmt.Sprintf(api.ChallengeSetPath, url.PathEscape(code))

	resp, err := doJSON[api.ChallengeSetResponse](ctx, c, op, http.MethodGet, path, nil)
	if err != nil {
		var oerr *interfaces.OracleError
		if errors.As(err, &oerr) && oerr.Status != 0 && oerr.Kind != interfaces.KindTransport {
			oerr.Kind = interfaces.KindNotFound
		}
		return nil, err
	}
	if resp.Data == nil {
		return nil, &interfaces.OracleError{Kind: interfaces.KindNotFound, Op: op, Message: "response carries no challenge set"}
	}

	setCode := resp.Data.Code
	if setCode == "" {
		setCode = code
	}
	return &interfaces.ChallengeSet{
		Code:                setCode,
		Name:                resp.Data.Name,
		MandatoryChallenges: resp.Data.MandatoryChallenges,
		RequiredConfidence:  resp.Data.RequiredConfidence,
	}, nil
}

// RegisterIdentity registers did for a challenge set. Success is the response's flag.
func (c *OracleClient) RegisterIdentity(ctx context.Context, did interfaces.DID, challengeSet string) error {
	body := api.RegisterIdentityRequest{DID: did, RequestedChallengeSet: challengeSet}
	_, err := c.postEnvelope(ctx, "registration", api.RegisterIdentityPath, body)
	return err
}

// CreateInstance opens a challenge instance for did.
func (c *OracleClient) CreateInstance(ctx context.Context, did interfaces.DID, challengeSet string) (*interfaces.ChallengeInstance, error) {
	const op = "instance creation"
	body := api.CreateInstanceRequest{DID: did, ChallengeSet: challengeSet}

	data, err := c.postEnvelope(ctx, op, api.ChallengeInstancePath, body)
	if err != nil {
		return nil, err
	}

	var parsed api.InstanceData
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &interfaces.OracleError{Kind: interfaces.KindTransport, Op: op, Message: "could not parse instance data", Err: err}
	}
	if parsed.ID == "" {
		return nil, &interfaces.OracleError{Kind: interfaces.KindTransport, Op: op, Message: "response carries no instance id"}
	}

	createdAt := time.Now().UTC()
	if parsed.CreatedAt != nil {
		createdAt = *parsed.CreatedAt
	}
	state := interfaces.NormalizeState(parsed.State)
	if state == "" {
		state = interfaces.StateCreated
	}
	return &interfaces.ChallengeInstance{
		ID:               parsed.ID,
		DID:              did,
		ChallengeSetCode: challengeSet,
		Nonce:            parsed.Nonce,
		State:            state,
		CreatedAt:        createdAt,
	}, nil
}

// GetInstanceState re-fetches the current state of an instance. It never caches.
func (c *OracleClient) GetInstanceState(ctx context.Context, instanceID string) (interfaces.InstanceState, error) {
	const op = "instance state"
	path := fmt.Sprintf(api.InstanceStatePath, url.PathEscape(instanceID))

	resp, err := doJSON[api.InstanceStateResponse](ctx, c, op, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	state, ok := resp.ResolvedState()
	if !ok {
		return "", &interfaces.OracleError{Kind: interfaces.KindTransport, Op: op, Message: "response carries no state"}
	}
	return interfaces.NormalizeState(state), nil
}

// SubmitEvidence posts one evidence item.
func (c *OracleClient) SubmitEvidence(ctx context.Context, instanceID string, item interfaces.EvidenceItem) (json.RawMessage, error) {
	body := api.SubmitEvidenceRequest{
		ChallengeInstanceID: instanceID,
		ChallengeID:         item.ChallengeID,
		Evidence:            item.Evidence,
	}
	return c.postEnvelope(ctx, "evidence submission", api.ChallengeEvidencePath, body)
}

// SubmitEvidenceBatch posts all items in one atomic request.
func (c *OracleClient) SubmitEvidenceBatch(ctx context.Context, instanceID string, items []interfaces.EvidenceItem) (json.RawMessage, error) {
	body := api.SubmitEvidenceBatchRequest{
		ChallengeInstanceID: instanceID,
		Responses:           items,
	}
	return c.postEnvelope(ctx, "batch evidence submission", api.ChallengeEvidencePath, body)
}

// GetAttestations lists the attestations issued for did.
func (c *OracleClient) GetAttestations(ctx context.Context, did interfaces.DID) ([]interfaces.Attestation, error) {
	path := fmt.Sprintf(api.AttestationsPath, url.PathEscape(did.String()))

	resp, err := doJSON[api.AttestationsResponse](ctx, c, "attestations", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// postEnvelope posts body and applies the success flag discipline.
func (c *OracleClient) postEnvelope(ctx context.Context, op, path string, body any) (json.RawMessage, error) {
	env, err := callJSON[api.Envelope](ctx, c, op, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		metrics.OracleRequests.WithLabelValues(op, string(interfaces.KindBusinessRejection)).Inc()
		return nil, &interfaces.OracleError{
			Kind:    interfaces.KindBusinessRejection,
			Op:      op,
			Message: env.Reason(),
		}
	}
	metrics.OracleRequests.WithLabelValues(op, "ok").Inc()
	return env.Data, nil
}

// doJSON performs one oracle call, decodes a 2xx body into T and counts it as ok.
func doJSON[T any](ctx context.Context, c *OracleClient, op, method, path string, body any) (*T, error) {
	out, err := callJSON[T](ctx, c, op, method, path, body)
	if err != nil {
		return nil, err
	}
	metrics.OracleRequests.WithLabelValues(op, "ok").Inc()
	return out, nil
}

// callJSON performs one oracle call and decodes a 2xx body into T. Failures are
// counted here; successful outcomes are left to the caller.
//
// Transport failures are retried with a constant backoff up to the client's cap.
// GETs are also retried on unreadable or undecodable bodies. POSTs are retried
// only when no response was received. Non-2xx answers are never retried.
func callJSON[T any](ctx context.Context, c *OracleClient, op, method, path string, body any) (*T, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &interfaces.OracleError{Kind: interfaces.KindRequest, Op: op, Message: "could not encode request", Err: err}
		}
	}

	idempotent := method == http.MethodGet
	endpoint := c.baseURL + path
	attempt := 0

	var out *T
	operation := func() error {
		attempt++
		var reqBody io.Reader = http.NoBody
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return backoff.Permanent(&interfaces.OracleError{Kind: interfaces.KindRequest, Op: op, Message: "could not build request", Err: err})
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			req.Header.Set(api.RequestIDHeader, reqID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			terr := &interfaces.OracleError{Kind: interfaces.KindTransport, Op: op, Message: fmt.Sprintf("could not request %s endpoint", op), Err: err}
			if ctx.Err() != nil {
				return backoff.Permanent(terr)
			}
			c.log.Debug("Oracle request failed", "op", op, "attempt", attempt, "err", err)
			return terr
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			terr := &interfaces.OracleError{Kind: interfaces.KindTransport, Op: op, Status: resp.StatusCode, Message: "could not read response", Err: err}
			if !idempotent {
				return backoff.Permanent(terr)
			}
			return terr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(statusError(op, resp.StatusCode, raw))
		}

		var parsed T
		if err := json.Unmarshal(raw, &parsed); err != nil {
			terr := &interfaces.OracleError{Kind: interfaces.KindTransport, Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("could not parse %s response", op), Err: err}
			if !idempotent {
				return backoff.Permanent(terr)
			}
			return terr
		}
		out = &parsed
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		var oerr *interfaces.OracleError
		if !errors.As(err, &oerr) {
			// context expired between attempts
			oerr = &interfaces.OracleError{Kind: interfaces.KindTransport, Op: op, Err: err}
		}
		metrics.OracleRequests.WithLabelValues(op, string(oerr.Kind)).Inc()
		c.log.Debug("Oracle call failed", "op", op, "attempts", attempt, "err", oerr)
		return nil, oerr
	}
	return out, nil
}

// statusError classifies a non-2xx answer and attaches the status hint.
func statusError(op string, status int, raw []byte) *interfaces.OracleError {
	kind := interfaces.KindRequest
	switch {
	case status == http.StatusNotFound:
		kind = interfaces.KindNotFound
	case status >= 500:
		kind = interfaces.KindUpstream
	}

	message := strings.TrimSpace(string(raw))
	var env api.Envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Reason() != "" {
		message = env.Reason()
	}

	return &interfaces.OracleError{
		Kind:    kind,
		Op:      op,
		Status:  status,
		Message: message,
		Hint:    interfaces.StatusHint(status),
	}
}
