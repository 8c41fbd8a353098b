package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"familyboard/internal/board"
	"familyboard/internal/boardview"
)

func TestHistoryInitialEntryEncodesNullFrom(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	entries := FromHistory([]board.HistoryEntry{
		{ID: 1, OrderID: "o", ToStageID: "s1", ChangedBy: board.OrderSourceActor, ChangedAt: at},
		{ID: 2, OrderID: "o", FromStageID: "s1", ToStageID: "s2", ChangedBy: "sam", ChangedAt: at},
	})
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"fromStageId":null`) || !strings.Contains(text, `"fromStageId":"s1"`) {
		t.Fatalf("unexpected payload: %s", text)
	}
	if !strings.Contains(text, `"changedAt":"2024-02-03T04:05:06Z"`) {
		t.Fatalf("unexpected timestamp format: %s", text)
	}

	back := ToHistory(entries)
	if !back[0].IsInitial() || back[1].FromStageID != "s1" || !back[1].ChangedAt.Equal(at) {
		t.Fatalf("unexpected round trip: %+v", back)
	}
}

func TestAssignmentPatchDistinguishesAbsentFromEmpty(t *testing.T) {
	var patch AssignmentPatch
	if err := json.Unmarshal([]byte(`{"assignedTo":"","priority":2}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	p := patch.ToPatch()
	if p.StageID != nil || p.Notes != nil {
		t.Fatalf("absent fields must stay nil: %+v", p)
	}
	if p.AssignedTo == nil || *p.AssignedTo != "" {
		t.Fatal("expected explicit empty owner to clear the assignee")
	}
	if p.Priority == nil || *p.Priority != board.PriorityRush {
		t.Fatalf("unexpected priority: %v", p.Priority)
	}
}

func TestBoardConversionKeepsOrderSnapshot(t *testing.T) {
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	b := board.Board{
		Stages: []board.Stage{{ID: "s", Name: "New", ExternalStatus: "open", Hidden: true}},
		Assignments: []board.Assignment{{
			OrderID:  "o",
			StageID:  "s",
			Priority: board.PriorityHigh,
			Order: board.OrderSnapshot{
				ID:        "o",
				Total:     board.Money{AmountCents: 999, Currency: "EUR"},
				LineItems: []board.LineItem{{Title: "Bowl", Quantity: 3}},
				CreatedAt: created,
				Tags:      []string{"gift"},
			},
		}},
	}
	dto := FromBoard(b)
	if !dto.Stages[0].IsHidden || dto.Stages[0].ExternalStatusMapping != "open" {
		t.Fatalf("unexpected stage dto: %+v", dto.Stages[0])
	}
	back := dto.ToBoard()
	got := back.Assignments[0]
	if got.Priority != board.PriorityHigh || got.Order.Total.AmountCents != 999 || got.Order.LineItems[0].Quantity != 3 {
		t.Fatalf("unexpected assignment: %+v", got)
	}
	if !got.Order.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created at: %s", got.Order.CreatedAt)
	}
}

func TestBoardRoundTripKeepsSubMillisecondOrdering(t *testing.T) {
	base := time.Date(2024, 5, 6, 7, 8, 9, 100_000, time.UTC)
	b := board.Board{
		Stages: []board.Stage{{ID: "s", Name: "Making"}},
		Assignments: []board.Assignment{
			{OrderID: "a", StageID: "s", LastUpdated: base.Add(400 * time.Microsecond), Order: board.OrderSnapshot{ID: "a"}},
			{OrderID: "z", StageID: "s", LastUpdated: base, Order: board.OrderSnapshot{ID: "z"}},
		},
	}
	now := base.Add(time.Minute)
	server := boardview.Compose(b, now, boardview.Options{}).Columns[0].Cards

	data, err := json.Marshal(FromBoard(b))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Board
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	client := boardview.Compose(decoded.ToBoard(), now, boardview.Options{}).Columns[0].Cards

	if server[0].Assignment.OrderID != "z" {
		t.Fatalf("expected older card first on server, got %s", server[0].Assignment.OrderID)
	}
	for i := range server {
		if server[i].Assignment.OrderID != client[i].Assignment.OrderID {
			t.Fatalf("card %d: server %s, client %s", i, server[i].Assignment.OrderID, client[i].Assignment.OrderID)
		}
		if !client[i].Assignment.LastUpdated.Equal(server[i].Assignment.LastUpdated) {
			t.Fatalf("card %d: lastUpdated %s became %s", i, server[i].Assignment.LastUpdated, client[i].Assignment.LastUpdated)
		}
	}
}

func TestOrderRejectsBadTimestamp(t *testing.T) {
	if _, err := (Order{ID: "o", CreatedAt: "yesterday"}).ToOrder(); err == nil {
		t.Fatal("expected malformed timestamp to fail")
	}
}
