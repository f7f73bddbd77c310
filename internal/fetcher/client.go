// Package fetcher talks to a ledger node over JSON-RPC: it lists the
// program's accounts and submits signed transactions.
package fetcher

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
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/pbaille/crowd/internal/domain"
	"github.com/pbaille/crowd/internal/txn"
)

// ErrNoSigner is returned by write calls on a client built without a signer.
var ErrNoSigner = errors.New("no signer configured")

// RPCError is an error object returned by the node
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Options configures a Client
type Options struct {
	ProgramID  domain.Address
	Timeout    time.Duration
	RateLimit  float64 // requests per second, <= 0 disables limiting
	Burst      int
	Commitment string
	Signer     txn.Signer
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client is a JSON-RPC ledger client
type Client struct {
	endpoint   string
	programID  domain.Address
	http       *http.Client
	limiter    *rate.Limiter
	commitment string
	signer     txn.Signer
	log        *slog.Logger
	nextID     atomic.Uint64
}

// New creates a Client for the node at endpoint
func New(endpoint string, opts Options) (*Client, error) {
	if opts.ProgramID.IsZero() {
		return nil, fmt.Errorf("rpc client: %w: empty program id", domain.ErrInvalidSeed)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
		if burst <= 0 {
			burst = 1
		}
	}

	commitment := opts.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   u.String(),
		programID:  opts.ProgramID,
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		commitment: commitment,
		signer:     opts.Signer,
		log:        logger,
	}, nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// call performs one JSON-RPC request and decodes its result into out
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit: %w", method, err)
	}

	body, err := json.Marshal(request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "crowd/1.0")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request: %w", method, err)
	}
	defer resp.Body.Close()

	// Program account listings can be large; cap at 64MB.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	c.log.DebugContext(ctx, "rpc call",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d: %s", method, resp.StatusCode, truncate(string(raw), 200))
	}

	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %w", method, envelope.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
