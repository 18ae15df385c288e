// Package annotationapi implements the AnnotationStore port against the
// remote annotation service. The caller's bearer token rides along on write
// operations so the remote side can enforce ownership independently.
package annotationapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"versegraph/application/ports"
	"versegraph/domain/core/entities"
	"versegraph/domain/core/valueobjects"
	pkgerrors "versegraph/pkg/errors"
)

// Client talks to the remote annotation API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an annotation API client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

var _ ports.AnnotationStore = (*Client)(nil)

type annotationPayload struct {
	ID        string    `json:"id"`
	VerseKey  string    `json:"verse_key"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Create stores a new annotation
func (c *Client) Create(ctx context.Context, ownerToken string, annotation *entities.Annotation) error {
	return c.send(ctx, http.MethodPost, "/annotations", ownerToken, toPayload(annotation))
}

// List returns annotations matching the filter
func (c *Client) List(ctx context.Context, filter ports.AnnotationFilter) ([]*entities.Annotation, error) {
	query := url.Values{}
	if filter.VerseKey != nil {
		query.Set("verse_key", filter.VerseKey.String())
	}
	if filter.Category != "" {
		query.Set("category", string(filter.Category))
	}

	u := c.baseURL + "/annotations"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.NewNetworkError("annotation-api unreachable", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var payloads []annotationPayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, pkgerrors.NewExternalError("annotation-api",
			fmt.Errorf("malformed response body: %w", err))
	}

	annotations := make([]*entities.Annotation, 0, len(payloads))
	for _, p := range payloads {
		annotation, err := fromPayload(p)
		if err != nil {
			c.logger.Warn("skipping malformed annotation",
				zap.String("annotationID", p.ID),
				zap.Error(err),
			)
			continue
		}
		annotations = append(annotations, annotation)
	}
	return annotations, nil
}

// Update replaces an existing annotation
func (c *Client) Update(ctx context.Context, ownerToken string, annotation *entities.Annotation) error {
	path := "/annotations/" + url.PathEscape(annotation.ID())
	return c.send(ctx, http.MethodPut, path, ownerToken, toPayload(annotation))
}

// Delete removes an annotation
func (c *Client) Delete(ctx context.Context, ownerToken string, annotationID string) error {
	path := "/annotations/" + url.PathEscape(annotationID)
	return c.send(ctx, http.MethodDelete, path, ownerToken, nil)
}

func (c *Client) send(ctx context.Context, method, path, ownerToken string, payload interface{}) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.NewInternalError("failed to encode annotation")
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.NewInternalError("failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if ownerToken != "" {
		req.Header.Set("Authorization", "Bearer "+ownerToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.NewNetworkError("annotation-api unreachable", err)
	}
	defer resp.Body.Close()

	return c.checkStatus(resp.StatusCode)
}

func (c *Client) checkStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return pkgerrors.NewUnauthorizedError("annotation-api rejected the owner token")
	case status == http.StatusForbidden:
		return pkgerrors.NewForbiddenError("annotation-api denied ownership of the card")
	case status == http.StatusNotFound:
		return pkgerrors.NewNotFoundError("annotation")
	case status >= 500:
		return pkgerrors.NewExternalError("annotation-api",
			fmt.Errorf("upstream returned %d", status))
	default:
		return pkgerrors.NewExternalError("annotation-api",
			fmt.Errorf("unexpected status %d", status))
	}
}

func toPayload(a *entities.Annotation) annotationPayload {
	return annotationPayload{
		ID:        a.ID(),
		VerseKey:  a.VerseKey().String(),
		OwnerID:   a.OwnerID(),
		Title:     a.Title(),
		Body:      a.Body(),
		Category:  string(a.Category()),
		Tags:      a.Tags(),
		CreatedAt: a.CreatedAt(),
		UpdatedAt: a.UpdatedAt(),
	}
}

func fromPayload(p annotationPayload) (*entities.Annotation, error) {
	key, err := valueobjects.ParseVerseKey(p.VerseKey)
	if err != nil {
		return nil, err
	}
	return entities.ReconstructAnnotation(
		p.ID, p.OwnerID, key, p.Title, p.Body,
		entities.AnnotationCategory(p.Category), p.Tags,
		p.CreatedAt, p.UpdatedAt,
	)
}
