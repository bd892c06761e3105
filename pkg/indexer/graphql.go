package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/bridge-reconciler/internal/metrics"
)

// graphqlClient is a minimal GraphQL-over-HTTP client shared by the indexer
// dialects. Indexer APIs are unauthenticated; the per-call timeout is the
// only protection against a stalled backend.
type graphqlClient struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

func newGraphQLClient(endpoint string, timeout time.Duration, logger *zap.Logger) *graphqlClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &graphqlClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// query posts one GraphQL document and unmarshals the data payload into out.
func (c *graphqlClient) query(ctx context.Context, queryName, document string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: document, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IndexerErrors.WithLabelValues(c.endpoint, queryName).Inc()
		return fmt.Errorf("indexer query %s failed: %w", queryName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.IndexerErrors.WithLabelValues(c.endpoint, queryName).Inc()
		return fmt.Errorf("indexer query %s: unexpected status %d", queryName, resp.StatusCode)
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		metrics.IndexerErrors.WithLabelValues(c.endpoint, queryName).Inc()
		return fmt.Errorf("indexer query %s: malformed response: %w", queryName, err)
	}
	if len(envelope.Errors) > 0 {
		metrics.IndexerErrors.WithLabelValues(c.endpoint, queryName).Inc()
		return fmt.Errorf("indexer query %s: %s", queryName, envelope.Errors[0].Message)
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("indexer query %s: failed to decode data: %w", queryName, err)
		}
	}
	return nil
}
