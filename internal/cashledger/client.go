package cashledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/filmledger/filmledger/internal/shared"
)

// ErrRejected indicates the external ledger refused the entry. Not retried.
var ErrRejected = errors.New("cashledger: entry rejected")

// InflowInput carries the fields of one cash inflow entry.
type InflowInput struct {
	Date        time.Time
	Amount      float64
	Description string
}

type inflowPayload struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Source      string  `json:"source"`
	Description string  `json:"description"`
	ProjectID   string  `json:"projectId,omitempty"`
	UserID      string  `json:"userId,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

type inflowResponse struct {
	ID string `json:"id"`
}

// Client posts cash inflow entries to the external ledger service over HTTP,
// with a bounded retry on transient failures.
type Client struct {
	http      *http.Client
	baseURL   string
	projectID string
	userID    string
	retry     shared.RetryPolicy
	logger    *slog.Logger
}

// NewClient constructs Client. The retry policy covers network errors and
// 5xx/429 responses only; a 4xx rejection fails immediately.
func NewClient(baseURL, projectID, userID string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		projectID: projectID,
		userID:    userID,
		retry:     shared.DefaultRetryPolicy(isTransient),
		logger:    logger,
	}
}

// CreateCashInflow records one inflow on the external ledger and returns its id.
func (c *Client) CreateCashInflow(ctx context.Context, in InflowInput) (string, error) {
	payload := inflowPayload{
		Date:        in.Date.Format("2006-01-02"),
		Amount:      in.Amount,
		Source:      "sale",
		Description: in.Description,
		ProjectID:   c.projectID,
		UserID:      c.userID,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var inflowID string
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		id, err := c.post(ctx, body)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("cash inflow attempt failed", slog.Any("error", err))
			}
			return err
		}
		inflowID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return inflowID, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &transientError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out inflowResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("cashledger: decode response: %w", err)
		}
		return out.ID, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &transientError{err: fmt.Errorf("cashledger: status %d", resp.StatusCode)}
	default:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, detail)
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
