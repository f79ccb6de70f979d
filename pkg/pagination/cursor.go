package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the cursor layout written by EncodeCursor.
const Version = 1

// ErrInvalidCursor wraps every decode and validation failure.
var ErrInvalidCursor = errors.New("cursor: invalid")

// Cursor resumes a list_rows listing. It travels as URL-safe base64 of compact
// JSON, so field names are abbreviated. Fh is the hash of the filter key the
// first page was computed under; the filter fields themselves ride along so a
// client can continue with the cursor alone.
type Cursor struct {
	V   int    `json:"v"`
	Did string `json:"did"`
	Fh  string `json:"fh"`
	Off int    `json:"off"`
	Ps  int    `json:"ps"`
	Iat int64  `json:"iat"`

	Sk string  `json:"sk,omitempty"`
	Ct string  `json:"ct,omitempty"`
	Df string  `json:"df,omitempty"`
	Dt string  `json:"dt,omitempty"`
	Mn float64 `json:"mn,omitempty"`
}

// EncodeCursor stamps the version and issue time when unset and returns the
// token.
func EncodeCursor(c Cursor) (string, error) {
	if c.V == 0 {
		c.V = Version
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if err := c.check(); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("cursor: marshal: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidCursor)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64url", ErrInvalidCursor)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", ErrInvalidCursor)
	}
	if c.V != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidCursor, c.V)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c Cursor) check() error {
	var problem string
	switch {
	case strings.TrimSpace(c.Did) == "":
		problem = "missing dataset id"
	case strings.TrimSpace(c.Fh) == "":
		problem = "missing filter hash"
	case c.Off < 0:
		problem = "negative offset"
	case c.Ps <= 0:
		problem = "page size must be positive"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidCursor, problem)
}

// HashKey digests a canonical filter key to 16 hex characters.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}

// NextOffset advances curr past n returned rows. Negative offsets clamp to 0.
func NextOffset(curr, n int) int {
	return max(curr, 0) + max(n, 0)
}
