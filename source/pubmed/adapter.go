// Package pubmed implements a source.Adapter over the NCBI E-utilities API.
//
// Each configured subject area (or a single free-text query) is searched
// with esearch and its results fetched with efetch, a page at a time. The
// cursor records the current area and the offset into its result list.
package pubmed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/medingest/core"
	"github.com/poiesic/medingest/source"
	"golang.org/x/time/rate"
)

// Kind is the source kind served by this package.
const Kind = "pubmed"

const (
	DefaultBaseURL      = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxDocuments = 1000

	// maxFetchIDs is the efetch limit on IDs per request.
	maxFetchIDs = 200

	anonymousRate = 3
	keyedRate     = 10
)

// Config holds client settings shared by every PubMed job.
type Config struct {
	BaseURL           string
	APIKey            string
	Tool              string
	Email             string
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client talks to E-utilities with a shared rate limit.
type Client struct {
	baseURL string
	apiKey  string
	tool    string
	email   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a client. Zero fields take their defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = anonymousRate
		if cfg.APIKey != "" {
			cfg.RequestsPerSecond = keyedRate
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		tool:    cfg.Tool,
		email:   cfg.Email,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  slog.Default().With("component", "pubmed"),
	}
}

// Factory returns a source.Factory building adapters on this client.
func (c *Client) Factory() source.Factory {
	return func(cfg core.SourceConfig) (source.Adapter, error) {
		return NewAdapter(c, cfg)
	}
}

// searchTarget is one esearch term and the subject it was derived from.
type searchTarget struct {
	area string
	term string
}

// Adapter pages through the results of one job's searches.
type Adapter struct {
	client       *Client
	targets      []searchTarget
	maxDocuments int
}

var _ source.Adapter = (*Adapter)(nil)

// NewAdapter builds the search plan for cfg.
// An explicit query is searched once; otherwise every subject area is
// searched with its mapped query.
func NewAdapter(client *Client, cfg core.SourceConfig) (*Adapter, error) {
	maxDocs := cfg.MaxDocuments
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocuments
	}

	var targets []searchTarget
	if q := strings.TrimSpace(cfg.Query); q != "" {
		hint := ""
		if len(cfg.SubjectAreas) == 1 {
			hint = core.NormalizePartitionName(cfg.SubjectAreas[0])
		}
		targets = append(targets, searchTarget{area: hint, term: withDateRange(q, cfg.DateFrom, cfg.DateTo)})
	} else {
		seen := make(map[string]bool)
		for _, area := range cfg.SubjectAreas {
			name := core.NormalizePartitionName(area)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			targets = append(targets, searchTarget{
				area: name,
				term: withDateRange(SubjectQuery(area), cfg.DateFrom, cfg.DateTo),
			})
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: pubmed source requires a query or subject areas", core.ErrInvalidSourceConfig)
	}

	return &Adapter{
		client:       client,
		targets:      targets,
		maxDocuments: maxDocs,
	}, nil
}

// position is the decoded cursor.
type position struct {
	Area     int `json:"area"`
	RetStart int `json:"retstart"`
}

func (a *Adapter) decodeCursor(cursor core.Cursor) (position, error) {
	var pos position
	if len(cursor) == 0 {
		return pos, nil
	}
	if err := json.Unmarshal(cursor, &pos); err != nil || pos.Area < 0 || pos.RetStart < 0 {
		return pos, core.MarkFatal(fmt.Errorf("%w: %q", source.ErrInvalidCursor, cursor),
			"the checkpoint does not belong to a pubmed source")
	}
	return pos, nil
}

func encodeCursor(pos position) core.Cursor {
	data, _ := json.Marshal(pos)
	return data
}

// FetchBatch returns the next page of up to limit records.
func (a *Adapter) FetchBatch(ctx context.Context, cursor core.Cursor, limit int) (*source.Batch, error) {
	pos, err := a.decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxFetchIDs {
		limit = maxFetchIDs
	}

	for pos.Area < len(a.targets) {
		target := a.targets[pos.Area]
		remaining := a.maxDocuments - pos.RetStart
		if remaining <= 0 {
			pos = position{Area: pos.Area + 1}
			continue
		}

		result, err := a.client.search(ctx, target.term, pos.RetStart, min(limit, remaining))
		if err != nil {
			return nil, err
		}
		if len(result.ids) == 0 {
			pos = position{Area: pos.Area + 1}
			continue
		}

		records, err := a.client.fetch(ctx, result.ids, target.area)
		if err != nil {
			return nil, err
		}

		next := position{Area: pos.Area, RetStart: pos.RetStart + len(result.ids)}
		if next.RetStart >= min(result.count, a.maxDocuments) {
			next = position{Area: pos.Area + 1}
		}
		return &source.Batch{
			Records: records,
			Next:    encodeCursor(next),
			HasMore: next.Area < len(a.targets),
		}, nil
	}

	return &source.Batch{Next: encodeCursor(pos), HasMore: false}, nil
}

type searchResult struct {
	count int
	ids   []string
}

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
		Error  string   `json:"ERROR"`
	} `json:"esearchresult"`
	Error string `json:"error"`
}

func (c *Client) search(ctx context.Context, term string, retstart, retmax int) (*searchResult, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retstart", strconv.Itoa(retstart))
	params.Set("retmax", strconv.Itoa(retmax))
	params.Set("retmode", "json")

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.MarkTransientSource(fmt.Errorf("decode esearch response: %w", err))
	}
	if msg := firstNonEmpty(resp.Error, resp.Result.Error); msg != "" {
		return nil, core.MarkFatal(fmt.Errorf("esearch: %s", msg), "check the search query")
	}

	count, _ := strconv.Atoi(resp.Result.Count)
	c.logger.Debug("esearch", "term", term, "retstart", retstart, "count", count, "ids", len(resp.Result.IDList))
	return &searchResult{count: count, ids: resp.Result.IDList}, nil
}

func (c *Client) fetch(ctx context.Context, ids []string, area string) ([]core.Record, error) {
	var records []core.Record
	for start := 0; start < len(ids); start += maxFetchIDs {
		chunk := ids[start:min(start+maxFetchIDs, len(ids))]

		params := url.Values{}
		params.Set("db", "pubmed")
		params.Set("id", strings.Join(chunk, ","))
		params.Set("retmode", "xml")

		body, err := c.get(ctx, "efetch.fcgi", params)
		if err != nil {
			return nil, err
		}
		parsed, err := parseArticles(body, area)
		if err != nil {
			return nil, core.MarkTransientSource(fmt.Errorf("decode efetch response: %w", err))
		}
		records = append(records, parsed...)
	}
	return records, nil
}

// get performs a throttled GET and classifies failures.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.tool != "" {
		params.Set("tool", c.tool)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, core.MarkFatal(err, "check the pubmed base URL")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.MarkTransientSource(fmt.Errorf("%s: %w", endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.MarkTransientSource(fmt.Errorf("%s: read body: %w", endpoint, err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, core.MarkTransientSource(&StatusError{Endpoint: endpoint, Code: resp.StatusCode})
	default:
		return nil, core.MarkFatal(&StatusError{Endpoint: endpoint, Code: resp.StatusCode},
			"check the query and the api key")
	}
}

// StatusError is a non-200 response from E-utilities.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Endpoint, e.Code)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
