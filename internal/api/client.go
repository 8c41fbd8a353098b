package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"familyboard/internal/board"
	"familyboard/internal/boardview"
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the board HTTP API on behalf of one bearer token.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// NewClient constructs a client. A nil doer uses http.DefaultClient.
func NewClient(baseURL, token string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  doer,
	}
}

// GetBoard fetches the filtered board.
func (c *Client) GetBoard(ctx context.Context, filters board.Filters) (board.Board, error) {
	query := url.Values{}
	if !filters.From.IsZero() {
		query.Set("from", formatTime(filters.From))
	}
	if !filters.To.IsZero() {
		query.Set("to", formatTime(filters.To))
	}
	for _, tag := range filters.Tags {
		query.Add("tag", tag)
	}
	var out Board
	if err := c.do(ctx, http.MethodGet, "/api/board", query, nil, &out); err != nil {
		return board.Board{}, err
	}
	return out.ToBoard(), nil
}

// ListStages fetches the family pipeline.
func (c *Client) ListStages(ctx context.Context) ([]board.Stage, error) {
	var out []Stage
	if err := c.do(ctx, http.MethodGet, "/api/stages", nil, nil, &out); err != nil {
		return nil, err
	}
	return ToStages(out), nil
}

// SaveStages replaces the family pipeline.
func (c *Client) SaveStages(ctx context.Context, stages []board.Stage) ([]board.Stage, error) {
	var out []Stage
	if err := c.do(ctx, http.MethodPut, "/api/stages", nil, FromStages(stages), &out); err != nil {
		return nil, err
	}
	return ToStages(out), nil
}

// CreateStage appends a stage.
func (c *Client) CreateStage(ctx context.Context, req CreateStageRequest) (board.Stage, error) {
	var out Stage
	if err := c.do(ctx, http.MethodPost, "/api/stages", nil, req, &out); err != nil {
		return board.Stage{}, err
	}
	return out.ToStage(), nil
}

// DeleteStage removes a stage, optionally moving its orders to reassignTo.
func (c *Client) DeleteStage(ctx context.Context, stageID, reassignTo string) (int, error) {
	query := url.Values{}
	if reassignTo != "" {
		query.Set("reassignTo", reassignTo)
	}
	var out DeleteStageResponse
	if err := c.do(ctx, http.MethodDelete, "/api/stages/"+url.PathEscape(stageID), query, nil, &out); err != nil {
		return 0, err
	}
	return out.Reassigned, nil
}

// SetStageHidden toggles stage visibility.
func (c *Client) SetStageHidden(ctx context.Context, stageID string, hidden bool) (board.Stage, error) {
	var out Stage
	path := "/api/stages/" + url.PathEscape(stageID) + "/visibility"
	if err := c.do(ctx, http.MethodPut, path, nil, VisibilityRequest{Hidden: hidden}, &out); err != nil {
		return board.Stage{}, err
	}
	return out.ToStage(), nil
}

// MoveStage places a stage at position and returns the reordered pipeline.
func (c *Client) MoveStage(ctx context.Context, stageID string, position int) ([]board.Stage, error) {
	var out []Stage
	path := "/api/stages/" + url.PathEscape(stageID) + "/position"
	if err := c.do(ctx, http.MethodPut, path, nil, PositionRequest{Position: position}, &out); err != nil {
		return nil, err
	}
	return ToStages(out), nil
}

// GetOrder fetches one assignment and its outward status.
func (c *Client) GetOrder(ctx context.Context, orderID string) (AssignmentDetail, error) {
	var out AssignmentDetail
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID), nil, nil, &out); err != nil {
		return AssignmentDetail{}, err
	}
	return out, nil
}

// UpdateAssignment applies a partial edit to one order.
func (c *Client) UpdateAssignment(ctx context.Context, orderID string, patch board.Patch) error {
	return c.do(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(orderID), nil, FromPatch(patch), nil)
}

// BulkUpdate applies patch to every listed order.
func (c *Client) BulkUpdate(ctx context.Context, orderIDs []string, patch board.Patch) error {
	req := BulkUpdateRequest{
		OrderIDs:   orderIDs,
		StageID:    patch.StageID,
		AssignedTo: patch.AssignedTo,
		Priority:   intPointer(patch.Priority),
	}
	return c.do(ctx, http.MethodPost, "/api/bulk-update", nil, req, nil)
}

// History fetches the audit trail of an order, oldest first.
func (c *Client) History(ctx context.Context, orderID string) ([]board.HistoryEntry, error) {
	var out []HistoryEntry
	path := "/api/orders/" + url.PathEscape(orderID) + "/history"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return ToHistory(out), nil
}

// Stats fetches board statistics.
func (c *Client) Stats(ctx context.Context) (boardview.Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &out); err != nil {
		return boardview.Stats{}, err
	}
	return out.ToStats(), nil
}

// SyncOrders submits order snapshots to the ingestion endpoint.
func (c *Client) SyncOrders(ctx context.Context, orders []Order) (SyncResponse, error) {
	var out SyncResponse
	if err := c.do(ctx, http.MethodPost, "/api/orders/sync", nil, SyncRequest{Orders: orders}, &out); err != nil {
		return SyncResponse{}, err
	}
	return out, nil
}

// Health fetches the unauthenticated health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", board.ErrNetworkFailure, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", board.ErrNetworkFailure, method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload ErrorResponse
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		payload.Error = strings.TrimSpace(string(data))
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: server returned %d: %s", board.ErrNetworkFailure, resp.StatusCode, payload.Error)
	}
	sentinel := board.SentinelFor(board.Kind(payload.Kind))
	if sentinel == nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			sentinel = board.ErrUnauthorized
		case http.StatusNotFound:
			sentinel = board.ErrOrderNotFound
		case http.StatusTooManyRequests:
			sentinel = board.ErrRateLimited
		default:
			sentinel = board.ErrInvalidInput
		}
	}
	return fmt.Errorf("%w: %s", sentinel, payload.Error)
}
