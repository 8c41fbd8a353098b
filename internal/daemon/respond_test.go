package daemon

import (
	"net/http"
	"testing"

	"familyboard/internal/board"
)

func TestStatusForKinds(t *testing.T) {
	cases := map[board.Kind]int{
		board.KindInvalidStage:    http.StatusUnprocessableEntity,
		board.KindInvalidPosition: http.StatusUnprocessableEntity,
		board.KindOrderNotFound:   http.StatusNotFound,
		board.KindStageInUse:      http.StatusConflict,
		board.KindUnauthorized:    http.StatusUnauthorized,
		board.KindInvalidInput:    http.StatusBadRequest,
		board.KindRateLimited:     http.StatusTooManyRequests,
		board.KindNetworkFailure:  http.StatusInternalServerError,
		board.KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusFor(kind); got != want {
			t.Fatalf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := newRateLimiter(0.001, 1, nil)
	if !rl.allow("fam/a") || rl.allow("fam/a") {
		t.Fatal("expected a single-token bucket for fam/a")
	}
	if !rl.allow("fam/b") {
		t.Fatal("expected fam/b to have its own bucket")
	}
	if !newRateLimiter(0, 0, nil).allow("any") {
		t.Fatal("expected a zero rate to disable limiting")
	}
}
