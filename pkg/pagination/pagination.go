package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit matches the remote service's default feed page size.
	DefaultLimit = 50
	// MaxLimit caps how many rows any cursor query can request.
	MaxLimit = 100
)

const keysetVersion = "k1"

var ErrMalformedCursor = errors.New("malformed cursor")

// Params holds cursor pagination inputs. Remote feeds treat Cursor as an
// opaque server token; local listings encode it with Keyset.Encode.
type Params struct {
	Limit  int
	Cursor string
}

// IsRoot reports whether the request targets the first, cursor-less page.
func (p Params) IsRoot() bool {
	return strings.TrimSpace(p.Cursor) == ""
}

// Fetch is the row count to ask the store for: one past the page so Trim can
// tell whether another page exists.
func (p Params) Fetch() int {
	return NormalizeLimit(p.Limit) + 1
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Trim cuts rows fetched with Params.Fetch down to the page size. The bool
// reports whether rows were dropped, i.e. a next page exists.
func Trim[T any](rows []T, p Params) ([]T, bool) {
	limit := NormalizeLimit(p.Limit)
	if len(rows) <= limit {
		return rows, false
	}
	return rows[:limit], true
}

// Keyset is a local (created_at, id) position in a newest-first listing.
type Keyset struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Encode renders the keyset as an opaque URL-safe token.
func (k Keyset) Encode() string {
	raw := keysetVersion + ":" + strconv.FormatInt(k.CreatedAt.UnixNano(), 10) + ":" + k.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseKeyset decodes a token produced by Keyset.Encode. A blank token yields
// nil so callers can start from the root page.
func ParseKeyset(token string) (*Keyset, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}
	parts := strings.Split(string(decoded), ":")
	if len(parts) != 3 || parts[0] != keysetVersion {
		return nil, ErrMalformedCursor
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrMalformedCursor, err)
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrMalformedCursor, err)
	}
	return &Keyset{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}
