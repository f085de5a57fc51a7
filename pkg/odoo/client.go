package odoo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxResponseSizeBytes = 8 << 20

	defaultBreakerFailures uint32 = 5
	defaultBreakerTimeout         = 30 * time.Second
	defaultBreakerInterval        = 60 * time.Second
)

type Config struct {
	URL      string        `envconfig:"URL" split_words:"true" required:"true"`
	DB       string        `envconfig:"DB" split_words:"true" required:"true"`
	Username string        `envconfig:"USERNAME" split_words:"true" required:"true"`
	Password string        `envconfig:"PASSWORD" split_words:"true" required:"true"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`

	BreakerFailures uint32        `envconfig:"BREAKER_FAILURES" split_words:"true" default:"5"`
	BreakerTimeout  time.Duration `envconfig:"BREAKER_TIMEOUT" split_words:"true" default:"30s"`
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client talks to Odoo through the /jsonrpc endpoint. Every call passes a
// circuit breaker; transport failures and an open breaker surface as
// contract.ErrConnection.
type Client struct {
	endpoint   string
	db         string
	username   string
	password   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[jsoniter.RawMessage]

	mu  sync.Mutex
	uid int64

	nextID atomic.Int64
}

var _ contractx.RecordStore = (*Client)(nil)

func New(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: odoo url is required", contractx.ErrValidation)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid odoo url: %v", contractx.ErrValidation, err)
	}
	if strings.TrimSpace(cfg.DB) == "" || strings.TrimSpace(cfg.Username) == "" {
		return nil, fmt.Errorf("%w: odoo db and username are required", contractx.ErrValidation)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	openFor := cfg.BreakerTimeout
	if openFor <= 0 {
		openFor = defaultBreakerTimeout
	}

	c := &Client{
		endpoint:   baseURL + "/jsonrpc",
		db:         strings.TrimSpace(cfg.DB),
		username:   strings.TrimSpace(cfg.Username),
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}
	c.breaker = gobreaker.NewCircuitBreaker[jsoniter.RawMessage](gobreaker.Settings{
		Name:        "odoo",
		MaxRequests: 1,
		Interval:    defaultBreakerInterval,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
		// Odoo faults (access denied, missing record) mean the server is up.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, contractx.ErrConnection)
		},
	})

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// State reports the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) Search(ctx context.Context, model string, domain []any) ([]int64, error) {
	if domain == nil {
		domain = []any{}
	}
	var ids []int64
	if err := c.executeKW(ctx, model, "search", []any{domain}, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) Read(ctx context.Context, model string, ids []int64) ([]contractx.Record, error) {
	if len(ids) == 0 {
		return []contractx.Record{}, nil
	}
	var records []contractx.Record
	if err := c.executeKW(ctx, model, "read", []any{ids}, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) Create(ctx context.Context, model string, fields map[string]any) (int64, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	var id int64
	if err := c.executeKW(ctx, model, "create", []any{fields}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (c *Client) Write(ctx context.Context, model string, ids []int64, fields map[string]any) error {
	var ok bool
	if err := c.executeKW(ctx, model, "write", []any{ids, fields}, nil, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("odoo write %s returned false", model)
	}
	return nil
}

func (c *Client) CheckAccess(ctx context.Context, model string, right string) error {
	var allowed bool
	kwargs := map[string]any{"raise_exception": false}
	if err := c.executeKW(ctx, model, "check_access_rights", []any{right}, kwargs, &allowed); err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s on %s", contractx.ErrPermission, right, model)
	}
	return nil
}

func (c *Client) executeKW(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	uid, err := c.login(ctx)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	raw, err := c.call(ctx, "object", "execute_kw", []any{c.db, uid, c.password, model, method, args, kwargs})
	if err != nil {
		return fmt.Errorf("odoo %s.%s: %w", model, method, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode odoo %s.%s result: %v", contractx.ErrRemoteFault, model, method, err)
	}
	return nil
}

// login authenticates once per client and caches the uid.
func (c *Client) login(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid > 0 {
		return c.uid, nil
	}

	raw, err := c.call(ctx, "common", "login", []any{c.db, c.username, c.password})
	if err != nil {
		return 0, fmt.Errorf("odoo login: %w", err)
	}
	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid <= 0 {
		// Odoo answers false on bad credentials.
		return 0, fmt.Errorf("%w: odoo login rejected for user %s", contractx.ErrPermission, c.username)
	}
	c.uid = uid
	return uid, nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result jsoniter.RawMessage `json:"result"`
	Error  *rpcError           `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (c *Client) call(ctx context.Context, service, method string, args []any) (jsoniter.RawMessage, error) {
	result, err := c.breaker.Execute(func() (jsoniter.RawMessage, error) {
		return c.post(ctx, service, method, args)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit open: %v", contractx.ErrConnection, err)
	}
	return result, err
}

func (c *Client) post(ctx context.Context, service, method string, args []any) (jsoniter.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal odoo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build odoo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read odoo response: %v", contractx.ErrConnection, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: odoo http status=%d body=%s", contractx.ErrConnection, resp.StatusCode, string(raw))
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode odoo response: %v", contractx.ErrRemoteFault, err)
	}
	if parsed.Error != nil {
		return nil, mapFault(parsed.Error)
	}
	return parsed.Result, nil
}

func mapFault(e *rpcError) error {
	msg := e.Data.Message
	if msg == "" {
		msg = e.Message
	}
	switch {
	case strings.HasSuffix(e.Data.Name, "AccessError"), strings.HasSuffix(e.Data.Name, "AccessDenied"):
		return fmt.Errorf("%w: %s", contractx.ErrPermission, msg)
	case strings.HasSuffix(e.Data.Name, "MissingError"):
		return fmt.Errorf("%w: %s", contractx.ErrNotFound, msg)
	case strings.HasSuffix(e.Data.Name, "ValidationError"), strings.HasSuffix(e.Data.Name, "UserError"):
		return fmt.Errorf("%w: %s", contractx.ErrValidation, msg)
	default:
		return fmt.Errorf("%w: odoo fault code=%d name=%s: %s", contractx.ErrRemoteFault, e.Code, e.Data.Name, msg)
	}
}
