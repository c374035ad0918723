package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("expected default %d, got %d", DefaultLimit, got)
	}
	if got := NormalizeLimit(500); got != MaxLimit {
		t.Fatalf("expected cap %d, got %d", MaxLimit, got)
	}
	if got := (Params{Limit: 10}).Fetch(); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}
}

func TestTrim(t *testing.T) {
	rows := []int{1, 2, 3}
	page, more := Trim(rows, Params{Limit: 2})
	if !more || len(page) != 2 {
		t.Fatalf("expected 2 rows and more, got %v %v", page, more)
	}
	page, more = Trim(rows, Params{Limit: 3})
	if more || len(page) != 3 {
		t.Fatalf("expected full page without more, got %v %v", page, more)
	}
}

func TestKeysetRoundTrip(t *testing.T) {
	want := Keyset{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 5, time.UTC), ID: uuid.New()}
	got, err := ParseKeyset(want.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("keyset mismatch: %+v vs %+v", got, want)
	}
	if k, err := ParseKeyset("  "); k != nil || err != nil {
		t.Fatalf("blank token should parse to nil")
	}
}

func TestParseKeysetRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not-base64!", "eDp5", "azE6YWJjOnh5eg"} {
		if _, err := ParseKeyset(token); !errors.Is(err, ErrMalformedCursor) {
			t.Fatalf("%q: expected ErrMalformedCursor, got %v", token, err)
		}
	}
}

func TestParamsIsRoot(t *testing.T) {
	if !(Params{}).IsRoot() {
		t.Fatalf("empty cursor is the root page")
	}
	if (Params{Cursor: "abc"}).IsRoot() {
		t.Fatalf("cursor request is not the root page")
	}
}
