package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"autopoolScope/internal/chain"
	"autopoolScope/internal/metrics"
)

// ErrSplitRange signals that the provider refused the range and a narrower one may succeed.
var ErrSplitRange = errors.New("provider limit reached, split range")

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxRetries     = 3
	defaultRetryBackoff   = 500 * time.Millisecond
)

// Query selects logs by emitting contract and topics.
type Query struct {
	Addresses []common.Address
	Topics    [][]common.Hash
}

// Transport fetches the logs of a single block range.
type Transport interface {
	GetLogs(ctx context.Context, q Query, r BlockRange) ([]types.Log, error)
}

// RPCCaller is the subset of rpc.Client used by RPCTransport.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// TransportConfig controls retries of provider-limit errors.
type TransportConfig struct {
	// MaxRetries is the number of in-place retries before escalating to
	// ErrSplitRange. 0 disables retries; a negative value selects the default of 3.
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestTimeout time.Duration
}

// RPCTransport issues eth_getLogs and classifies provider errors.
type RPCTransport struct {
	caller  RPCCaller
	profile chain.Profile
	cfg     TransportConfig
	metrics *metrics.FetchMetrics
	logger  *zap.Logger
}

func NewRPCTransport(caller RPCCaller, profile chain.Profile, cfg TransportConfig, m *metrics.FetchMetrics, logger *zap.Logger) *RPCTransport {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if m == nil {
		m = metrics.NewFetchMetrics(profile.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCTransport{
		caller:  caller,
		profile: profile,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// limitError marks a provider-limit failure inside the retry loop.
type limitError struct {
	err error
}

func (e *limitError) Error() string { return e.err.Error() }
func (e *limitError) Unwrap() error { return e.err }

func isLimitError(err error) bool {
	var le *limitError
	return errors.As(err, &le)
}

// GetLogs fetches logs for r. Provider-limit errors are retried with backoff and
// then reported as ErrSplitRange; every other error is returned as fatal.
func (t *RPCTransport) GetLogs(ctx context.Context, q Query, r BlockRange) ([]types.Log, error) {
	arg := filterArg(q, r)

	var logs []types.Log
	err := withRetry(ctx, t.cfg.MaxRetries, t.cfg.RetryBackoff, isLimitError, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, t.cfg.RequestTimeout)
		defer cancel()

		var result []types.Log
		timer := t.metrics.RPCLatencies("eth_getLogs")
		err := t.caller.CallContext(callCtx, &result, "eth_getLogs", arg)
		timer.ObserveDuration()
		if err == nil {
			logs = result
			return nil
		}
		if t.isProviderLimit(ctx, err) {
			t.logger.Debug("provider limit",
				zap.String("chain", t.profile.Name),
				zap.Uint64("from", r.From),
				zap.Uint64("to", r.To),
				zap.Error(err),
			)
			return &limitError{err: err}
		}
		return err
	})

	switch {
	case err == nil:
		t.metrics.RPCRequests("ok").Inc()
		if logs == nil {
			logs = []types.Log{}
		}
		return logs, nil
	case isLimitError(err):
		t.metrics.RPCRequests("split").Inc()
		return nil, fmt.Errorf("%w: %s on %s: %v", ErrSplitRange, r, t.profile.Name, err)
	default:
		t.metrics.RPCRequests("fatal").Inc()
		return nil, fmt.Errorf("eth_getLogs %s on %s: %w", r, t.profile.Name, err)
	}
}

func (t *RPCTransport) isProviderLimit(ctx context.Context, err error) bool {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusServiceUnavailable {
			return t.profile.RetryOn503
		}
		if code, message, ok := parseErrorBody(httpErr.Body); ok {
			return isOversizedResponse(code, message)
		}
		return false
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return isOversizedResponse(rpcErr.ErrorCode(), rpcErr.Error())
	}

	// The per-request timeout fired while the caller is still alive: the range
	// was too expensive for the provider to answer in time.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return true
	}
	return false
}

var oversizedMessages = []string{
	"log response size exceeded",
	"query returned more than",
	"response size exceeded",
	"block range too large",
	"exceed maximum block range",
	"too many results",
	"block range is too wide",
	"limit exceeded",
}

// isOversizedResponse matches provider "range too large" errors. -32602 and
// -32600 are also generic invalid-params codes, so those need a message match.
func isOversizedResponse(code int, message string) bool {
	if code == -32005 {
		return true
	}
	switch code {
	case -32602, -32600, -32000:
	default:
		return false
	}
	msg := strings.ToLower(message)
	for _, indicator := range oversizedMessages {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

func parseErrorBody(body []byte) (int, string, bool) {
	var resp struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == nil {
		return 0, "", false
	}
	return resp.Error.Code, resp.Error.Message, true
}

func filterArg(q Query, r BlockRange) map[string]interface{} {
	arg := map[string]interface{}{
		"fromBlock": hexutil.EncodeUint64(r.From),
		"toBlock":   hexutil.EncodeUint64(r.To),
	}
	if len(q.Addresses) > 0 {
		arg["address"] = q.Addresses
	}
	if len(q.Topics) > 0 {
		arg["topics"] = q.Topics
	}
	return arg
}
