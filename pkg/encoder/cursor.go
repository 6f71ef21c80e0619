package encoder

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor is returned when a cursor token cannot be decoded back
// into a creation timestamp.
var ErrInvalidCursor = errors.New("invalid cursor token")

// cursorToken is the wire shape of a feed cursor. The cursor is the creation
// timestamp of the last item on the previous page.
type cursorToken struct {
	CreatedAt time.Time `json:"created_at"`
}

// CursorSerializer converts feed cursors between their opaque string form and
// the creation timestamp the engine paginates on.
type CursorSerializer struct {
	encoder Encoder
}

// NewCursorSerializer returns a serializer that wraps cursor timestamps with
// the given encoder. Callers typically pass a Base64Encoder so the token is
// opaque to API consumers.
func NewCursorSerializer(enc Encoder) *CursorSerializer {
	return &CursorSerializer{encoder: enc}
}

func (s *CursorSerializer) Serialize(createdAt time.Time) (string, error) {
	data, err := json.Marshal(cursorToken{CreatedAt: createdAt})
	if err != nil {
		return "", err
	}
	return s.encoder.Encode(data)
}

func (s *CursorSerializer) Deserialize(token string) (time.Time, error) {
	data, err := s.encoder.Decode(token)
	if err != nil {
		return time.Time{}, ErrInvalidCursor
	}

	var ct cursorToken
	if err := json.Unmarshal(data, &ct); err != nil {
		return time.Time{}, ErrInvalidCursor
	}
	if ct.CreatedAt.IsZero() {
		return time.Time{}, ErrInvalidCursor
	}
	return ct.CreatedAt, nil
}
