// Package remote implements the RemoteClient port over the canvas sync
// HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"canvas-sync/domain/core/aggregates"
	"canvas-sync/domain/core/valueobjects"
	apperrors "canvas-sync/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Client talks to the collaborator-owned sync server. All outbound calls
// run through a circuit breaker so a dead server degrades to fast local
// failures instead of piling up blocked sync goroutines.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// ClientConfig holds the remote client tunables
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a sync API client
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	c := &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sync-api",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// Application-level rejections mean the server is healthy;
			// only transport failures and 5xx count against the breaker
			return err == nil || !apperrors.IsNetwork(err)
		},
	})
	return c
}

type syncRequest struct {
	Version      string                   `json:"version"`
	Transactions []aggregates.Transaction `json:"transactions"`
}

type transactionsResponse struct {
	Transactions []aggregates.Transaction `json:"transactions"`
}

// GetCanvasState fetches the full authoritative state of a canvas
func (c *Client) GetCanvasState(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.CanvasState, error) {
	var state aggregates.CanvasState
	path := fmt.Sprintf("/api/canvases/%s/state", url.PathEscape(canvasID.String()))
	if err := c.call(ctx, http.MethodGet, path, nil, &state); err != nil {
		return nil, err
	}
	if state.Transactions == nil {
		state.Transactions = []aggregates.Transaction{}
	}
	return &state, nil
}

// GetTransactionsSince fetches transactions created after since, relative
// to the given version
func (c *Client) GetTransactionsSince(ctx context.Context, canvasID valueobjects.CanvasID, version valueobjects.VersionID, since int64) ([]aggregates.Transaction, error) {
	path := fmt.Sprintf("/api/canvases/%s/transactions?version=%s&since=%d",
		url.PathEscape(canvasID.String()), url.QueryEscape(version.String()), since)

	var resp transactionsResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// SyncTransactions pushes locally recorded transactions
func (c *Client) SyncTransactions(ctx context.Context, canvasID valueobjects.CanvasID, version valueobjects.VersionID, transactions []aggregates.Transaction) error {
	path := fmt.Sprintf("/api/canvases/%s/sync", url.PathEscape(canvasID.String()))
	body := syncRequest{
		Version:      version.String(),
		Transactions: transactions,
	}
	return c.call(ctx, http.MethodPost, path, body, nil)
}

// CreateVersion asks the server to compact the given state into a new
// version and returns the fresh baseline
func (c *Client) CreateVersion(ctx context.Context, canvasID valueobjects.CanvasID, state *aggregates.CanvasState) (*aggregates.CanvasState, error) {
	path := fmt.Sprintf("/api/canvases/%s/versions", url.PathEscape(canvasID.String()))

	var fresh aggregates.CanvasState
	if err := c.call(ctx, http.MethodPost, path, state, &fresh); err != nil {
		return nil, err
	}
	if fresh.Transactions == nil {
		fresh.Transactions = []aggregates.Transaction{}
	}
	return &fresh, nil
}

// GetSnapshot fetches the materialized shareable graph
func (c *Client) GetSnapshot(ctx context.Context, canvasID valueobjects.CanvasID) (*aggregates.Graph, error) {
	var graph aggregates.Graph
	path := fmt.Sprintf("/api/canvases/%s/snapshot", url.PathEscape(canvasID.String()))
	if err := c.call(ctx, http.MethodGet, path, nil, &graph); err != nil {
		return nil, err
	}
	return &graph, nil
}

// call executes one JSON request through the circuit breaker, decoding the
// response into out when out is non-nil
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, path, body, out)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperrors.NewNetworkError("sync API circuit open", err)
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError("failed to encode request body").WithCause(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.NewInternalError("failed to build request").WithCause(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.classify(resp, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.NewNetworkError(fmt.Sprintf("%s %s returned malformed body", method, path), err)
		}
	}
	return nil
}

// classify maps an HTTP error status onto the error taxonomy. Conflict and
// not-found are application-level outcomes the sync services branch on.
func (c *Client) classify(resp *http.Response, method, path string) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := string(payload)
	if message == "" {
		message = resp.Status
	}

	c.logger.Debug("Sync API error response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	switch resp.StatusCode {
	case http.StatusConflict:
		return apperrors.NewConflictError(message)
	case http.StatusNotFound:
		return apperrors.NewNotFoundError("canvas")
	case http.StatusBadRequest:
		return apperrors.NewValidationError(message)
	default:
		return apperrors.NewNetworkError(
			fmt.Sprintf("%s %s returned status %d", method, path, resp.StatusCode), nil)
	}
}
