package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"familyboard/internal/api"
	"familyboard/internal/auth"
	"familyboard/internal/board"
	"familyboard/internal/config"
	"familyboard/internal/daemon"
	"familyboard/internal/logging"
	"familyboard/internal/metrics"
	"familyboard/internal/store"
	"familyboard/internal/testsupport"
)

const family = "fam-1"

type harness struct {
	cfg    *config.Config
	store  *store.Store
	server *httptest.Server
	stages []board.Stage
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedStages(t, st, family, "New", "Making", "Packed", "Shipped")

	deps := daemon.BuildServices(cfg, st, metrics.New(), logging.NewNop(), nil)
	handler, err := daemon.NewHandler(cfg, deps, logging.NewNop())
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &harness{cfg: cfg, store: st, server: server, stages: seeded}
}

func (h *harness) token(t *testing.T, userID, familyID string) string {
	t.Helper()
	token, err := auth.Issue(h.cfg.Auth.JWTSecret, h.cfg.Auth.Issuer, auth.Principal{UserID: userID, FamilyID: familyID}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func (h *harness) client(t *testing.T, userID, familyID string) *api.Client {
	return api.NewClient(h.server.URL, h.token(t, userID, familyID), h.server.Client())
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (int, api.ErrorResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var payload api.ErrorResponse
	if resp.StatusCode >= 400 {
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
	}
	return resp.StatusCode, payload
}

func TestDragMakingToPackedRecordsHistoryAndStats(t *testing.T) {
	h := newHarness(t)
	making, packed := h.stages[1], h.stages[2]
	testsupport.SeedAssignment(t, h.store, family, "o-1", making.ID, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	client := h.client(t, "sam", family)
	ctx := context.Background()
	if err := client.UpdateAssignment(ctx, "o-1", board.Patch{StageID: &packed.ID}); err != nil {
		t.Fatalf("UpdateAssignment: %v", err)
	}

	history, err := client.History(ctx, "o-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected initial entry plus one move, got %d", len(history))
	}
	last := history[1]
	if last.FromStageID != making.ID || last.ToStageID != packed.ID || last.ChangedBy != "sam" {
		t.Fatalf("unexpected history entry: %+v", last)
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got, _ := stats.ForStage(packed.ID); got.TotalOrders != 1 {
		t.Fatalf("expected Packed to count 1 order, got %+v", got)
	}
	if got, _ := stats.ForStage(making.ID); got.TotalOrders != 0 {
		t.Fatalf("expected Making to be empty, got %+v", got)
	}

	detail, err := client.GetOrder(ctx, "o-1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if detail.StageID != packed.ID {
		t.Fatalf("expected order in Packed, got %s", detail.StageID)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, http.MethodGet, "/api/board", "", nil)
	if status != http.StatusUnauthorized || body.Kind != string(board.KindUnauthorized) {
		t.Fatalf("expected 401 unauthorized, got %d %+v", status, body)
	}

	forged, err := auth.Issue("another-secret-0123456789", h.cfg.Auth.Issuer, auth.Principal{UserID: "sam", FamilyID: family}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if status, _ := h.do(t, http.MethodGet, "/api/board", forged, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected forged token to be rejected, got %d", status)
	}
}

func TestHealthAndMetricsAreUnauthenticated(t *testing.T) {
	h := newHarness(t)

	resp, err := h.server.Client().Get(h.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health.Status != "ok" || health.Stages != 4 {
		t.Fatalf("unexpected health: %d %+v", resp.StatusCode, health)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected a request id header")
	}

	resp, err = h.server.Client().Get(h.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(data), "board_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedAssignment(t, h.store, family, "o-1", h.stages[0].ID, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	token := h.token(t, "sam", family)
	outsider := h.token(t, "eve", "fam-2")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   board.Kind
	}{
		{"unknown stage", http.MethodPut, "/api/orders/o-1", token, map[string]any{"stageId": "nope"}, http.StatusUnprocessableEntity, board.KindInvalidStage},
		{"other family order", http.MethodGet, "/api/orders/o-1", outsider, nil, http.StatusNotFound, board.KindOrderNotFound},
		{"stage in use", http.MethodDelete, "/api/stages/" + h.stages[0].ID, token, nil, http.StatusConflict, board.KindStageInUse},
		{"bad position", http.MethodPut, "/api/stages/" + h.stages[0].ID + "/position", token, map[string]any{"position": 9}, http.StatusUnprocessableEntity, board.KindInvalidPosition},
		{"empty bulk", http.MethodPost, "/api/bulk-update", token, map[string]any{"orderIds": []string{}, "priority": 2}, http.StatusBadRequest, board.KindInvalidInput},
		{"unknown field", http.MethodPut, "/api/orders/o-1", token, map[string]any{"colour": "red"}, http.StatusBadRequest, board.KindInvalidInput},
		{"bad date filter", http.MethodGet, "/api/board?from=yesterday", token, nil, http.StatusBadRequest, board.KindInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := h.do(t, tc.method, tc.path, tc.token, tc.body)
			if status != tc.status || body.Kind != string(tc.kind) {
				t.Fatalf("expected %d %s, got %d %+v", tc.status, tc.kind, status, body)
			}
		})
	}
}

func TestMutationsAreRateLimitedPerUser(t *testing.T) {
	h := newHarness(t, testsupport.WithMutationLimit(0.001, 1))
	testsupport.SeedAssignment(t, h.store, family, "o-1", h.stages[0].ID, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	token := h.token(t, "sam", family)
	patch := map[string]any{"notes": "first"}

	if status, body := h.do(t, http.MethodPut, "/api/orders/o-1", token, patch); status != http.StatusNoContent {
		t.Fatalf("expected first mutation to pass, got %d %+v", status, body)
	}
	status, body := h.do(t, http.MethodPut, "/api/orders/o-1", token, map[string]any{"notes": "second"})
	if status != http.StatusTooManyRequests || body.Kind != string(board.KindRateLimited) {
		t.Fatalf("expected 429 rate_limited, got %d %+v", status, body)
	}
	if status, _ := h.do(t, http.MethodGet, "/api/orders/o-1", token, nil); status != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", status)
	}
	other := h.token(t, "alex", family)
	if status, _ := h.do(t, http.MethodPut, "/api/orders/o-1", other, map[string]any{"notes": "third"}); status != http.StatusNoContent {
		t.Fatalf("expected another user to have their own budget, got %d", status)
	}
}

func TestSyncCreatesAndRefreshesOrders(t *testing.T) {
	h := newHarness(t)
	client := h.client(t, "sam", family)
	ctx := context.Background()

	orders := []api.Order{
		{ID: "o-1", Customer: "Ada", CreatedAt: "2024-03-01T10:00:00Z", Tags: []string{"gift"}},
		{ID: "o-2", Customer: "Lin", CreatedAt: "2024-03-02T10:00:00Z"},
	}
	result, err := client.SyncOrders(ctx, orders)
	if err != nil {
		t.Fatalf("SyncOrders: %v", err)
	}
	if result.Created != 2 || result.Refreshed != 0 {
		t.Fatalf("unexpected first sync: %+v", result)
	}

	orders[0].Customer = "Ada L."
	result, err = client.SyncOrders(ctx, orders[:1])
	if err != nil {
		t.Fatalf("SyncOrders: %v", err)
	}
	if result.Created != 0 || result.Refreshed != 1 {
		t.Fatalf("unexpected second sync: %+v", result)
	}

	b, err := client.GetBoard(ctx, board.Filters{Tags: []string{"GIFT"}})
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if len(b.Assignments) != 1 || b.Assignments[0].Order.Customer != "Ada L." {
		t.Fatalf("unexpected filtered board: %+v", b.Assignments)
	}
	if len(b.Stages) != 4 {
		t.Fatalf("expected every stage on the board, got %d", len(b.Stages))
	}
}

func TestStageEndpoints(t *testing.T) {
	h := newHarness(t)
	client := h.client(t, "sam", family)
	ctx := context.Background()
	testsupport.SeedAssignment(t, h.store, family, "o-1", h.stages[3].ID, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	created, err := client.CreateStage(ctx, api.CreateStageRequest{Name: "Delivered", ExternalStatusMapping: "fulfilled"})
	if err != nil {
		t.Fatalf("CreateStage: %v", err)
	}
	if created.Position != 4 {
		t.Fatalf("expected new stage at the end, got %d", created.Position)
	}

	list, err := client.MoveStage(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("MoveStage: %v", err)
	}
	if list[0].ID != created.ID || list[4].ID != h.stages[3].ID {
		t.Fatalf("unexpected order after move: %+v", list)
	}

	hidden, err := client.SetStageHidden(ctx, h.stages[3].ID, true)
	if err != nil || !hidden.Hidden {
		t.Fatalf("SetStageHidden: %v %+v", err, hidden)
	}

	moved, err := client.DeleteStage(ctx, h.stages[3].ID, created.ID)
	if err != nil {
		t.Fatalf("DeleteStage: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected one reassigned order, got %d", moved)
	}
	remaining, err := client.ListStages(ctx)
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	for i, stage := range remaining {
		if stage.Position != i {
			t.Fatalf("positions not contiguous after delete: %+v", remaining)
		}
	}
	if _, err := client.DeleteStage(ctx, "missing", ""); !errors.Is(err, board.ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
}
