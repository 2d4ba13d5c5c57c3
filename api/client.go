// Package api provides a client for the sequence archive's drop-box,
// portal search and taxonomy endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/synum-dev/synum/internal/cli"
	"github.com/synum-dev/synum/internal/errors"
)

const (
	// ProductionBaseURL is the archive's production host.
	ProductionBaseURL = "https://www.ebi.ac.uk"
	// TestBaseURL is the archive's test host; objects submitted there expire.
	TestBaseURL = "https://wwwdev.ebi.ac.uk"

	dropBoxPath  = "/ena/submit/drop-box/submit/"
	searchPath   = "/ena/portal/api/search"
	taxonomyPath = "/ena/taxonomy/rest/suggest-for-submission/"

	// DefaultTimeout bounds every HTTPS call.
	DefaultTimeout = 5 * time.Minute
)

// StatusKind classifies a failed drop-box response.
type StatusKind string

const (
	KindMalformed StatusKind = "malformed request"
	KindAuth      StatusKind = "authentication failed"
	KindTimeout   StatusKind = "request timeout"
	KindOther     StatusKind = "unexpected status"
	KindEmpty     StatusKind = "empty response"
)

// StatusError is returned for any non-200 archive response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Kind       StatusKind
	Body       string
}

func (e *StatusError) Error() string {
	if e.Kind == KindEmpty {
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Kind)
	}
	msg := fmt.Sprintf("%s: %s (HTTP %d)", e.Endpoint, e.Kind, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func statusKind(code int) StatusKind {
	switch code {
	case http.StatusBadRequest:
		return KindMalformed
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusRequestTimeout:
		return KindTimeout
	}
	return KindOther
}

// categorize wraps a StatusError with its pipeline category.
func categorize(e *StatusError) error {
	cat := errors.CategoryNetwork
	if e.Kind == KindAuth {
		cat = errors.CategoryAuth
	}
	return errors.New(e).
		Category(cat).
		Context("endpoint", e.Endpoint).
		Context("status", e.StatusCode).
		Build()
}

// Client provides access to the archive.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Username   string
	Password   string
	UserAgent  string
	Logger     *slog.Logger

	searches *cache.Cache
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API client.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithDevelopmentService selects the test host when test is true.
func WithDevelopmentService(test bool) ClientOption {
	return func(c *Client) {
		if test {
			c.BaseURL = TestBaseURL
		} else {
			c.BaseURL = ProductionBaseURL
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.HTTPClient = httpClient
	}
}

// WithCredentials sets the basic-auth credentials used for drop-box submissions.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.Username = username
		c.Password = password
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.Logger = logger
	}
}

// NewClient creates a new archive client with the given options.
// The default target is the test host.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    TestBaseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		UserAgent:  "synum/1.0",
		Logger:     slog.New(slog.DiscardHandler),
		searches:   cache.New(time.Hour, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DropBoxSubmit posts a submission document together with a sample set and
// returns the raw receipt. No retry is attempted; any status other than 200
// and any empty body are terminal.
func (c *Client) DropBoxSubmit(ctx context.Context, submissionXML, sampleXML []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		key  string
		data []byte
	}{
		{"SUBMISSION", submissionXML},
		{"SAMPLE", sampleXML},
	} {
		w, err := mw.CreateFormFile(part.key, strings.ToLower(part.key)+".xml")
		if err != nil {
			return nil, fmt.Errorf("creating form part %s: %w", part.key, err)
		}
		if _, err := w.Write(part.data); err != nil {
			return nil, fmt.Errorf("writing form part %s: %w", part.key, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	reqURL := c.BaseURL + dropBoxPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(c.Username, c.Password)

	c.Logger.Debug("drop-box submit", "url", reqURL, "bytes", body.Len())

	data, err := c.do(req, "drop-box")
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, categorize(&StatusError{Endpoint: "drop-box", StatusCode: http.StatusOK, Kind: KindEmpty})
	}
	return data, nil
}

// Search queries the portal and returns rows keyed by header name. Results
// are memoized per URL for the lifetime of the client.
func (c *Client) Search(ctx context.Context, resultType string, q *Query) ([]map[string]string, error) {
	resultType = GetObjectType(resultType)
	if !q.HasFilters() {
		return nil, errors.Config("search of %s has no filter", resultType)
	}
	if len(q.SelectFields) == 0 {
		q = q.Clone().Select(GetDefaultFields(resultType)...)
	}

	params := url.Values{}
	params.Set("result", resultType)
	params.Set("query", q.Build())
	params.Set("fields", q.Fields())
	params.Set("format", "tsv")
	if q.LimitValue > 0 {
		params.Set("limit", strconv.Itoa(q.LimitValue))
	}
	reqURL := c.BaseURL + searchPath + "?" + params.Encode()

	if rows, ok := c.searches.Get(reqURL); ok {
		return rows.([]map[string]string), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/plain")

	c.Logger.Debug("portal search", "result", resultType, "query", q.Build())

	data, err := c.do(req, "search")
	if err != nil {
		return nil, err
	}

	rows, err := parseSearch(data, q.SelectFields)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryNetwork).
			Context("endpoint", "search").
			Context("query", q.Build()).
			Build()
	}
	c.searches.SetDefault(reqURL, rows)
	return rows, nil
}

// parseSearch reads a TSV response. An empty body or a bare header is an
// empty result; a header lacking a requested field is malformed.
func parseSearch(data []byte, fields []string) ([]map[string]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []map[string]string{}, nil
	}
	r := cli.NewTabReader(bytes.NewReader(data), true)
	if _, err := r.Headers(); err != nil {
		return nil, fmt.Errorf("reading search header: %w", err)
	}
	if !r.HasColumns(fields...) {
		return nil, fmt.Errorf("malformed search header: expected fields %s", strings.Join(fields, ","))
	}
	rows, err := r.Records()
	if err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	if rows == nil {
		rows = []map[string]string{}
	}
	return rows, nil
}

// Suggestion is a taxon accepted for submission.
type Suggestion struct {
	TaxID          string `json:"taxId"`
	ScientificName string `json:"scientificName"`
	DisplayName    string `json:"displayName"`
}

// TaxonomySuggest returns the taxa the archive accepts for a free-text query.
func (c *Client) TaxonomySuggest(ctx context.Context, query string) ([]Suggestion, error) {
	reqURL := c.BaseURL + taxonomyPath + url.PathEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	c.Logger.Debug("taxonomy suggest", "query", query)

	data, err := c.do(req, "taxonomy")
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var out []Suggestion
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.New(fmt.Errorf("decoding taxonomy suggestions: %w", err)).
			Category(errors.CategoryNetwork).
			Context("query", query).
			Build()
	}
	return out, nil
}

// do executes req and returns the body of a 200 response.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.New(fmt.Errorf("executing %s request: %w", endpoint, err)).
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Build()
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading %s response: %w", endpoint, err)).
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		return nil, categorize(&StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Kind:       statusKind(resp.StatusCode),
			Body:       truncate(strings.TrimSpace(string(data)), 512),
		})
	}
	return data, nil
}

// setHeaders sets common headers for API requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.UserAgent)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
