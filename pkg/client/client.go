package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/monctl/monctl/pkg/engine"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "monctl"

const apiPrefix = "/api/v1/"

// Config configures a Client.
type Config struct {
	// BaseURL is the monitoring service root, e.g. "https://monitoring.example.com".
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds each HTTP request. Ignored when HTTPClient is set.
	Timeout time.Duration

	// RateLimit is the sustained request rate per second. Zero disables limiting.
	RateLimit float64

	// Burst is the token bucket size. Values below one are raised to one.
	Burst int

	// UserAgent overrides DefaultUserAgent.
	UserAgent string

	// HTTPClient replaces the default client.
	HTTPClient *http.Client

	// Logger receives request debug logs. Nil discards them.
	Logger *zerolog.Logger
}

// Client talks to the monitoring service REST API. It implements engine.Applier.
type Client struct {
	baseURL   *url.URL
	token     string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

var _ engine.Applier = (*Client)(nil)

// Remote is a resource as stored by the monitoring service.
type Remote struct {
	ID         string                 `json:"id"`
	TrackingID string                 `json:"tracking_id"`
	Kind       string                 `json:"kind,omitempty"`
	Name       string                 `json:"name"`
	Project    string                 `json:"project"`
	Spec       map[string]interface{} `json:"spec,omitempty"`
}

type listResponse struct {
	Data []Remote `json:"data"`
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme %q", base.Scheme)
	}

	c := &Client{
		baseURL:   base,
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
		logger:    zerolog.Nop(),
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.Logger != nil {
		c.logger = *cfg.Logger
	}
	return c, nil
}

// Apply creates res when the service has no resource with its tracking id,
// updates it when the name or spec differ, and reports a noop otherwise.
func (c *Client) Apply(ctx context.Context, res engine.Resource) (engine.ApplyResult, error) {
	if err := res.Kind.Validate(); err != nil {
		return engine.ApplyResult{}, engine.NewPermanentError("invalid resource", err).
			WithCode(engine.ErrCodeValidation).
			WithResource(res.TrackingID())
	}

	existing, err := c.Find(ctx, res.Kind, res.TrackingID())
	if err != nil {
		return engine.ApplyResult{}, withResource(err, res.TrackingID(), "find")
	}

	body := Remote{
		TrackingID: res.TrackingID(),
		Kind:       string(res.Kind),
		Name:       res.Name,
		Project:    res.Project,
		Spec:       res.Spec,
	}

	if existing == nil {
		var created Remote
		if err := c.do(ctx, http.MethodPost, c.collectionPath(res.Kind), nil, body, &created); err != nil {
			return engine.ApplyResult{}, withResource(err, res.TrackingID(), "create")
		}
		return engine.ApplyResult{RemoteID: created.ID, Action: engine.OperationCreate}, nil
	}

	if unchanged(existing, &body) {
		return engine.ApplyResult{RemoteID: existing.ID, Action: engine.OperationNoop}, nil
	}

	var updated Remote
	path := c.collectionPath(res.Kind) + "/" + url.PathEscape(existing.ID)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &updated); err != nil {
		return engine.ApplyResult{}, withResource(err, res.TrackingID(), "update")
	}
	id := updated.ID
	if id == "" {
		id = existing.ID
	}
	return engine.ApplyResult{RemoteID: id, Action: engine.OperationUpdate}, nil
}

// Find returns the remote resource with the given tracking id, or nil if there is none.
func (c *Client) Find(ctx context.Context, kind engine.ResourceKind, trackingID string) (*Remote, error) {
	var list listResponse
	query := url.Values{"tracking_id": {trackingID}}
	if err := c.do(ctx, http.MethodGet, c.collectionPath(kind), query, nil, &list); err != nil {
		return nil, err
	}
	for i := range list.Data {
		if list.Data[i].TrackingID == trackingID {
			return &list.Data[i], nil
		}
	}
	return nil, nil
}

// Get fetches a remote resource by its service-assigned id.
func (c *Client) Get(ctx context.Context, kind engine.ResourceKind, remoteID string) (*Remote, error) {
	var remote Remote
	path := c.collectionPath(kind) + "/" + url.PathEscape(remoteID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &remote); err != nil {
		return nil, err
	}
	return &remote, nil
}

func (c *Client) collectionPath(kind engine.ResourceKind) string {
	return apiPrefix + kind.Collection()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return classifyTransport(ctx.Err())
			}
			return engine.NewTimeoutError("rate limiter wait exceeds deadline", err).WithCode(engine.ErrCodeTimeout)
		}
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return engine.NewPermanentError("failed to encode request", err).WithCode(engine.ErrCodeValidation)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return engine.NewPermanentError("failed to create request", err).WithCode(engine.ErrCodeInternal)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classifyStatus(resp.StatusCode, errorMessage(data), resp.Header.Get("Retry-After"))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return engine.NewPermanentError("failed to decode response", err).WithCode(engine.ErrCodeRemote)
	}
	return nil
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && len(er.Errors) > 0 {
		return strings.Join(er.Errors, "; ")
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func withResource(err error, trackingID, operation string) error {
	if e, ok := err.(*engine.Error); ok {
		return e.WithResource(trackingID).WithOperation(operation)
	}
	return err
}

// unchanged compares the remote copy with the desired body after a JSON
// round trip so that number types line up.
func unchanged(remote, desired *Remote) bool {
	if remote.Name != desired.Name {
		return false
	}
	return reflect.DeepEqual(normalize(remote.Spec), normalize(desired.Spec))
}

func normalize(spec map[string]interface{}) interface{} {
	if len(spec) == 0 {
		return nil
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return spec
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return spec
	}
	return out
}
