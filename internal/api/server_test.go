package api

import (
	"net/http/httptest"
	"testing"

	"firma/internal/decision"
	"firma/internal/game"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"Bearer abc":        "abc",
		"bearer abc":        "abc",
		"Basic abc":         "",
		"Bearer":            "",
		"  Bearer   token ": "token",
	}
	for header, want := range cases {
		if got := bearerToken(header); got != want {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestIdempotencyKeyHeaderWins(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/games", nil)
	r.Header.Set("Idempotency-Key", "client-key")
	if got := idempotencyKey(r); got != "client-key" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestIdempotencyKeyGenerated(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/games", nil)
	if got := idempotencyKey(r); got == "" {
		t.Fatal("expected generated key")
	}
}

func TestWriteDomainErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{game.ErrGameNotFound, 404},
		{decision.ErrUnknownDecision, 404},
		{game.ErrInvalidCompanyName, 400},
		{decision.ErrParamOutOfRange, 400},
		{game.ErrDuplicateIdempotency, 409},
		{decision.ErrCooldownActive, 409},
		{game.ErrTxConflict, 409},
		{game.ErrUnauthorized, 403},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		writeDomainError(w, tc.err)
		if w.Code != tc.want {
			t.Fatalf("writeDomainError(%v) = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}
