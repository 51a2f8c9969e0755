// Package dataapi is the HTTP client for the graph data API: the single
// terminal graph submission and the entity reads the consent flow needs
// (the form schema entity). Failures are surfaced as typed errors and
// only transient statuses are retried.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openlattice/lattice-consent/pkg/edm"
	"github.com/openlattice/lattice-consent/pkg/graph"
)

// DataGraph is the combined submission payload.
type DataGraph struct {
	EntityData      graph.EntityData      `json:"entities"`
	AssociationData graph.AssociationData `json:"associations"`
}

// CreateResponse lists the entity key ids created per entity set, in the
// same order as the submitted record sequences.
type CreateResponse struct {
	EntityKeyIDs map[uuid.UUID][]uuid.UUID `json:"entityKeyIds"`
}

// Entity is a read entity: property values keyed by FQN.
type Entity map[string][]any

// PropertyType is one entry of the entity data model listing.
type PropertyType struct {
	ID   uuid.UUID `json:"id"`
	Type struct {
		Namespace string `json:"namespace"`
		Name      string `json:"name"`
	} `json:"type"`
}

// APIError is a non-2xx response from the data API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("data api error: status=%d message=%s", e.StatusCode, e.Message)
}

// RetryConfig bounds the retry loop for transient failures.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
	retry      RetryConfig
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL, authToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		authToken:  authToken,
		retry:      RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// CreateEntityAndAssociationData submits the assembled graph. This is the
// only externally visible effect of a consent submission, so retries here
// are NOT safe and the call is made exactly once; whole-submission retries
// rebuild the graph and re-sign with a fresh key pair.
func (c *Client) CreateEntityAndAssociationData(ctx context.Context, dataGraph DataGraph) (CreateResponse, error) {
	var out CreateResponse
	if err := c.do(ctx, http.MethodPost, "/data/graph", dataGraph, &out, false); err != nil {
		return CreateResponse{}, err
	}
	return out, nil
}

// GetEntityData fetches one entity by entity set and entity key id.
func (c *Client) GetEntityData(ctx context.Context, entitySetID, entityKeyID uuid.UUID) (Entity, error) {
	path := "/data/entitySets/" + url.PathEscape(entitySetID.String()) + "/entities/" + url.PathEscape(entityKeyID.String())
	var out Entity
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPropertyTypeIDs loads the entity data model property type listing and
// indexes it by fully qualified name.
func (c *Client) GetPropertyTypeIDs(ctx context.Context) (edm.PropertyTypeIDs, error) {
	var listing []PropertyType
	if err := c.do(ctx, http.MethodGet, "/edm/propertyTypes", nil, &listing, true); err != nil {
		return nil, err
	}
	out := edm.PropertyTypeIDs{}
	for _, pt := range listing {
		out[edm.FQN(pt.Type.Namespace+"."+pt.Type.Name)] = pt.ID
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, retryable bool) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	attempts := 1
	if retryable {
		attempts = c.retry.MaxAttempts
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if len(bodyBytes) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.authToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < attempts {
				c.sleepWithBackoff(attempt)
				continue
			}
			return err
		}
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			return json.Unmarshal(respBody, out)
		}
		if retryable && shouldRetryStatus(resp.StatusCode) && attempt < attempts {
			c.log.Warn().Int("status", resp.StatusCode).Str("path", path).Int("attempt", attempt).Msg("retrying data api request")
			c.sleepWithBackoff(attempt)
			continue
		}
		return parseAPIError(resp.StatusCode, respBody)
	}
	return errors.New("unreachable")
}

func shouldRetryStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

func (c *Client) sleepWithBackoff(attempt int) {
	delay := float64(c.retry.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retry.MaxDelay) {
		delay = float64(c.retry.MaxDelay)
	}
	time.Sleep(time.Duration(rand.Int63n(int64(delay) + 1)))
}

func parseAPIError(status int, body []byte) error {
	out := &APIError{StatusCode: status}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		out.Message = strings.TrimSpace(string(body))
		if out.Message == "" {
			out.Message = http.StatusText(status)
		}
		return out
	}
	if inner, ok := obj["error"].(map[string]any); ok {
		obj = inner
	}
	out.Message, _ = obj["message"].(string)
	if out.Message == "" {
		out.Message = http.StatusText(status)
	}
	return out
}
