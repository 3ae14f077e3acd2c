// Package servicenow is the record-lifecycle client for the ServiceNow
// table and attachment REST APIs backing the kiosk.
package servicenow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evcraddock/visitor-kiosk/internal/config"
)

// TimeLayout is the datetime format the table API reads and writes.
const TimeLayout = "2006-01-02 15:04:05"

// Client talks to one ServiceNow instance.
type Client struct {
	baseURL        string
	authHeader     string
	table          string
	locationTable  string
	signatureField string
	fields         []config.FormField

	httpClient *http.Client
	uploader   AttachmentUploader
	logger     *slog.Logger
	now        func() time.Time
	loc        *time.Location
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client, which has no timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the time source used for timestamps and day matching.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLocation sets the zone in which record timestamps are interpreted
// when matching today's record.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

// New creates a client from the backend settings and the form fields that
// map submission values to table columns.
func New(cfg config.ServiceNow, fields []config.FormField, opts ...Option) (*Client, error) {
	if cfg.InstanceURL == "" {
		return nil, fmt.Errorf("servicenow: instance url is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("servicenow: table name is required")
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.InstanceURL, "/"),
		authHeader:     "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Username+":"+cfg.Password)),
		table:          cfg.TableName,
		locationTable:  cfg.LocationTable,
		signatureField: cfg.SignatureField,
		fields:         fields,
		httpClient:     &http.Client{},
		logger:         slog.Default(),
		now:            time.Now,
		loc:            time.Local,
	}
	if c.locationTable == "" {
		c.locationTable = "cmn_location"
	}
	if c.signatureField == "" {
		c.signatureField = "u_signature"
	}
	if cfg.TimeZone != "" {
		loc, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("servicenow: loading time zone: %w", err)
		}
		c.loc = loc
	}

	for _, opt := range opts {
		opt(c)
	}

	switch cfg.AttachmentMode {
	case config.AttachmentFile:
		c.uploader = NewFileUploader(c, cfg.TempDir)
	case config.AttachmentBlob, "":
		c.uploader = NewBlobUploader(c)
	default:
		return nil, fmt.Errorf("servicenow: unknown attachment mode %q", cfg.AttachmentMode)
	}

	return c, nil
}

// Table returns the visitor record table name.
func (c *Client) Table() string { return c.table }

// timestamp returns the current time formatted for the table API, in UTC.
func (c *Client) timestamp() string {
	return c.now().UTC().Format(TimeLayout)
}

type envelope[T any] struct {
	Result T `json:"result"`
}

func tablePath(table string) string {
	return "/api/now/table/" + url.PathEscape(table)
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, op, false, result)
}

func (c *Client) sendJSON(ctx context.Context, method, op, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, true, result)
}

// do executes req with the credential header. Non-2xx responses become a
// *RemoteWriteError when write is set and a *RemoteReadError otherwise.
func (c *Client) do(req *http.Request, op string, write bool, result any) error {
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("servicenow request",
		"op", op,
		"method", req.Method,
		"path", req.URL.Path,
		"auth", c.authPrefix(),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("closing response body", "op", op, "error", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", op, err)
	}

	c.logger.Debug("servicenow response", "op", op, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("servicenow request failed", "op", op, "status", resp.StatusCode, "body", string(respBody))
		if write {
			return &RemoteWriteError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		}
		return &RemoteReadError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) authPrefix() string {
	const n = 12
	if len(c.authHeader) <= n {
		return "..."
	}
	return c.authHeader[:n] + "..."
}
