package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/types"
)

const (
	salesPath    = "/api/v1/sales"
	productsPath = "/api/v1/products"
	livenessPath = "/health/live"

	idempotencyHeader       = "Idempotency-Key"
	errorBodyLimit    int64 = 1024
	defaultTimeout          = 10 * time.Second
)

// ErrNetwork marks failures worth retrying: transport errors, timeouts,
// throttling and 5xx responses.
var ErrNetwork = errors.New("remote backend unreachable")

var errBaseURLRequired = errors.New("remote base url is required")

// duplicateCodes are 409 error codes the backend uses for a replayed key.
var duplicateCodes = map[string]struct{}{
	string(pkgerrors.CodeIdempotency): {},
	"DUPLICATE_SUBMISSION":            {},
}

// TokenSource supplies bearer tokens for backend calls.
type TokenSource interface {
	Token() (string, error)
}

// Client talks to the retail backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTokenSource attaches a bearer token to every request.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SubmitSale posts a sale under its idempotency key. A replayed key is a
// success carrying the original acknowledgement. Retryable failures wrap
// ErrNetwork; other 4xx responses come back as CodeRejected errors.
func (c *Client) SubmitSale(ctx context.Context, sale types.Sale) (types.SaleAck, error) {
	if strings.TrimSpace(sale.IdempotencyKey) == "" {
		return types.SaleAck{}, pkgerrors.New(pkgerrors.CodeValidation, "sale idempotency key is required")
	}
	payload, err := json.Marshal(newSaleRequest(sale))
	if err != nil {
		return types.SaleAck{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal sale request")
	}

	req, err := c.newRequest(ctx, http.MethodPost, salesPath, bytes.NewReader(payload))
	if err != nil {
		return types.SaleAck{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHeader, sale.IdempotencyKey)

	resp, err := c.do(req)
	if err != nil {
		return types.SaleAck{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.SaleAck{}, fmt.Errorf("%w: read sale response: %v", ErrNetwork, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		ack, err := decodeAck(body)
		if err != nil {
			return types.SaleAck{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode sale response")
		}
		return ack, nil
	case resp.StatusCode == http.StatusConflict && isDuplicate(body):
		ack, err := decodeAck(body)
		if err != nil {
			ack = types.SaleAck{}
		}
		ack.Duplicate = true
		return ack, nil
	default:
		return types.SaleAck{}, statusError(resp.StatusCode, body, "submit sale")
	}
}

// FetchProducts pulls the full catalog.
func (c *Client) FetchProducts(ctx context.Context) ([]types.Product, error) {
	req, err := c.newRequest(ctx, http.MethodGet, productsPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, statusError(resp.StatusCode, msg, "fetch products")
	}

	var envelope struct {
		Data []types.Product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode products response")
	}
	if envelope.Data == nil {
		envelope.Data = []types.Product{}
	}
	return envelope.Data, nil
}

// Ping reports whether the backend liveness endpoint answers 2xx.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, livenessPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: liveness status %d", ErrNetwork, resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build remote request")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint device token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// IsNetwork reports whether err is retryable.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsRejected reports whether the backend refused the request outright.
func IsRejected(err error) bool {
	return pkgerrors.HasCode(err, pkgerrors.CodeRejected)
}

func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

func statusError(status int, body []byte, op string) error {
	if retryableStatus(status) {
		return fmt.Errorf("%w: %s: status %d", ErrNetwork, op, status)
	}
	apiErr := decodeAPIError(body)
	msg := apiErr.Message
	if msg == "" {
		msg = strings.TrimSpace(string(truncate(body)))
	}
	cause := fmt.Errorf("%s: status %d: %s", op, status, msg)
	err := pkgerrors.Wrap(pkgerrors.CodeRejected, cause, "backend rejected request")
	details := map[string]any{"status": status}
	if apiErr.Code != "" {
		details["remoteCode"] = apiErr.Code
	}
	if apiErr.Message != "" {
		details["remoteMessage"] = apiErr.Message
	}
	return err.WithDetails(details)
}

func isDuplicate(body []byte) bool {
	apiErr := decodeAPIError(body)
	if _, ok := duplicateCodes[strings.ToUpper(apiErr.Code)]; ok {
		return true
	}
	var envelope struct {
		Data *saleAckPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return envelope.Data.Duplicate
	}
	return false
}

func decodeAPIError(body []byte) types.APIError {
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return types.APIError{}
	}
	return envelope.Error
}

// truncate caps body at errorBodyLimit bytes without splitting a rune.
func truncate(body []byte) []byte {
	if int64(len(body)) <= errorBodyLimit {
		return body
	}
	cut := int(errorBodyLimit)
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
