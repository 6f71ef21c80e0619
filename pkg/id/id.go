// Package id generates the ULID row identifiers used for entries,
// connections, and comments. ULIDs sort lexicographically by creation time,
// which keeps id ordering consistent with the created_at ordering the feed
// paginates on.
package id

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mutex   sync.Mutex
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

type ID struct {
	value ulid.ULID
}

// NewFromTime returns a new ID stamped with the given creation time.
func NewFromTime(t time.Time) (*ID, error) {
	mutex.Lock()
	defer mutex.Unlock()

	id, err := ulid.New(uint64(t.UnixMilli()), entropy)
	if err != nil {
		return nil, err
	}

	return &ID{id}, nil
}

// NewStringFromTime returns the string form of a new ID stamped with the
// given creation time.
func NewStringFromTime(t time.Time) (string, error) {
	id, err := NewFromTime(t)
	if err != nil {
		return "", err
	}

	return id.value.String(), nil
}

// NewString returns the string form of a new ID stamped with the current time.
func NewString() (string, error) {
	return NewStringFromTime(time.Now())
}

// Parse parses s as an ID, rejecting anything that is not a strict ULID.
func Parse(s string) (*ID, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return nil, err
	}

	return &ID{id}, nil
}

// IsValid reports whether s parses as an ID.
func IsValid(s string) bool {
	if _, err := Parse(s); err != nil {
		return false
	}
	return true
}

// Time returns the creation time stamped into the ID.
func (id *ID) Time() time.Time {
	return ulid.Time(id.value.Time())
}
