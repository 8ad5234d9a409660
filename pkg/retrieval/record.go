// Package retrieval is the vector store layer: records, metadata predicates,
// the Backend contract implemented by each database, and the Store that
// enforces search ordering, limits, timeouts and the embedding invariant.
package retrieval

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the unit of storage.
type Record struct {
	// ID is a version 1 UUID whose timestamp is the record's creation time.
	ID string `json:"id"`

	// Contents is the exact text the embedding was computed from.
	Contents string `json:"contents"`

	// Metadata holds independently filterable document fields.
	Metadata map[string]any `json:"metadata"`

	// Embedding is always derived from Contents by the Store. Backends may
	// leave it empty on read.
	Embedding []float32 `json:"-"`
}

// Result is a search hit. Lower Distance means more similar.
type Result struct {
	Record   Record  `json:"record"`
	Distance float64 `json:"distance"`

	// Seq orders records by insertion; it breaks distance ties.
	Seq int64 `json:"-"`
}

// 100ns intervals between the Gregorian epoch (1582-10-15) and the Unix epoch.
const gregorianOffset = 122192928000000000

// NewID returns a version 1 UUID carrying t as its timestamp, with random
// clock sequence and node bits.
//
// Example:
//
//	id := retrieval.NewID(time.Now())
func NewID(t time.Time) string {
	u := uuid.New()
	ts := uint64(t.UTC().UnixNano()/100) + gregorianOffset

	binary.BigEndian.PutUint32(u[0:4], uint32(ts))
	binary.BigEndian.PutUint16(u[4:6], uint16(ts>>32))
	binary.BigEndian.PutUint16(u[6:8], uint16(ts>>48)&0x0fff|0x1000)
	u[8] = u[8]&0x3f | 0x80
	return u.String()
}

// IDTime extracts the creation time embedded in a version 1 record ID.
func IDTime(id string) (time.Time, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid record id %q: %w", id, err)
	}
	if u.Version() != 1 {
		return time.Time{}, fmt.Errorf("record id %q is version %d, want time-based version 1", id, u.Version())
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec).UTC(), nil
}

// TimeRange restricts results by the creation time embedded in record IDs.
// Start is inclusive, End is exclusive. A zero bound is open.
type TimeRange struct {
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// IsZero reports whether both bounds are open.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r TimeRange) String() string {
	f := func(t time.Time) string {
		if t.IsZero() {
			return "*"
		}
		return t.Format(time.RFC3339)
	}
	return "[" + f(r.Start) + ", " + f(r.End) + ")"
}
