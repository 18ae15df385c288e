// Package scriptureapi implements the ScriptureReader port against the
// remote Bible graph HTTP API. All calls go through a circuit breaker so a
// struggling upstream fails fast instead of piling up sessions.
package scriptureapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
	"versegraph/pkg/observability"
)

// Client talks to the remote scripture graph API
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewClient creates a scripture API client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "scripture-api",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing verse is a reported outcome, not an upstream failure;
		// only real failures may trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
	}
}

var _ ports.ScriptureReader = (*Client)(nil)

type verseResponse struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

type graphDataRecord struct {
	SourceBook    string `json:"source_book"`
	SourceChapter int    `json:"source_chapter"`
	SourceVerse   int    `json:"source_verse"`
	TargetBook    string `json:"target_book"`
	TargetChapter int    `json:"target_chapter"`
	TargetVerse   int    `json:"target_verse"`
}

// GetVerse fetches a single verse's details
func (c *Client) GetVerse(ctx context.Context, key valueobjects.VerseKey) (*ports.Verse, error) {
	path := fmt.Sprintf("/verses/%s/%d/%d",
		url.PathEscape(key.Book()), key.Chapter(), key.Verse())

	var resp verseResponse
	if err := c.getJSON(ctx, "get_verse", path, nil, &resp); err != nil {
		return nil, err
	}

	parsed, err := valueobjects.NewVerseKey(resp.Book, resp.Chapter, resp.Verse)
	if err != nil {
		return nil, pkgerrors.NewExternalError("scripture-api",
			fmt.Errorf("malformed verse in response: %w", err))
	}

	return &ports.Verse{Key: parsed, Text: resp.Text}, nil
}

// GetNeighborhood fetches the relationship window for one (book, chapter) page
func (c *Client) GetNeighborhood(ctx context.Context, page valueobjects.PageKey, limit int) ([]ports.Relationship, error) {
	query := url.Values{}
	query.Set("book", page.Book())
	query.Set("chapter", strconv.Itoa(page.Chapter()))
	query.Set("limit", strconv.Itoa(limit))

	var records []graphDataRecord
	if err := c.getJSON(ctx, "get_neighborhood", "/graph-data", query, &records); err != nil {
		return nil, err
	}

	relationships := make([]ports.Relationship, 0, len(records))
	for _, rec := range records {
		source, err := valueobjects.NewVerseKey(rec.SourceBook, rec.SourceChapter, rec.SourceVerse)
		if err != nil {
			c.logger.Warn("skipping malformed relationship source",
				zap.String("book", rec.SourceBook),
				zap.Error(err),
			)
			continue
		}
		target, err := valueobjects.NewVerseKey(rec.TargetBook, rec.TargetChapter, rec.TargetVerse)
		if err != nil {
			c.logger.Warn("skipping malformed relationship target",
				zap.String("book", rec.TargetBook),
				zap.Error(err),
			)
			continue
		}
		relationships = append(relationships, ports.Relationship{Source: source, Target: target})
	}

	return relationships, nil
}

// GetCrossReferences fetches the direct cross-references of one verse
func (c *Client) GetCrossReferences(ctx context.Context, key valueobjects.VerseKey) ([]valueobjects.VerseKey, error) {
	path := fmt.Sprintf("/cross-references/%s/%d/%d",
		url.PathEscape(key.Book()), key.Chapter(), key.Verse())

	var records []verseResponse
	if err := c.getJSON(ctx, "get_cross_references", path, nil, &records); err != nil {
		return nil, err
	}

	keys := make([]valueobjects.VerseKey, 0, len(records))
	for _, rec := range records {
		parsed, err := valueobjects.NewVerseKey(rec.Book, rec.Chapter, rec.Verse)
		if err != nil {
			c.logger.Warn("skipping malformed cross-reference",
				zap.String("book", rec.Book),
				zap.Error(err),
			)
			continue
		}
		keys = append(keys, parsed)
	}

	return keys, nil
}

// getJSON performs one GET through the breaker and decodes the body into out
func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out interface{}) error {
	c.metrics.RemoteFetches.WithLabelValues(operation).Inc()
	start := time.Now()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doGetJSON(ctx, path, query, out)
	})

	c.metrics.RemoteLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		c.metrics.RemoteFetchErrors.WithLabelValues(operation, "circuit_open").Inc()
		return pkgerrors.NewExternalError("scripture-api", err)
	}
	if err != nil {
		kind := "network"
		if appErr, ok := err.(*pkgerrors.AppError); ok {
			kind = string(appErr.Type)
		}
		if !pkgerrors.IsNotFound(err) {
			c.metrics.RemoteFetchErrors.WithLabelValues(operation, kind).Inc()
		}
		return err
	}
	return nil
}

func (c *Client) doGetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return pkgerrors.NewInternalError("failed to build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.NewNetworkError("scripture-api unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return pkgerrors.NewNotFoundError("verse")
	case resp.StatusCode >= 500:
		return pkgerrors.NewExternalError("scripture-api",
			fmt.Errorf("upstream returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return pkgerrors.NewExternalError("scripture-api",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.NewExternalError("scripture-api",
			fmt.Errorf("malformed response body: %w", err))
	}
	return nil
}
