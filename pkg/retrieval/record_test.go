package retrieval

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewIDEmbedsTime(t *testing.T) {
	t.Parallel()

	tests := []time.Time{
		time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 123456700, time.UTC),
		time.Date(2031, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600)),
	}
	for _, want := range tests {
		id := NewID(want)
		u, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("NewID() = %q is not a uuid: %v", id, err)
		}
		if u.Version() != 1 || u.Variant() != uuid.RFC4122 {
			t.Errorf("NewID() version %d variant %v, want v1 RFC4122", u.Version(), u.Variant())
		}
		got, err := IDTime(id)
		if err != nil {
			t.Fatalf("IDTime() error = %v", err)
		}
		if !got.Equal(want.Truncate(100 * time.Nanosecond)) {
			t.Errorf("IDTime() = %v, want %v", got, want)
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	t.Parallel()

	now := time.Now()
	seen := map[string]bool{}
	for range 1000 {
		id := NewID(now)
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestIDTimeRejects(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"", "not-a-uuid", uuid.NewString()} {
		if _, err := IDTime(id); err == nil {
			t.Errorf("IDTime(%q) succeeded, want error", id)
		}
	}
}

func TestTimeRangeContains(t *testing.T) {
	t.Parallel()

	may1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	jun1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		r    TimeRange
		t    time.Time
		want bool
	}{
		{"open", TimeRange{}, may1, true},
		{"start inclusive", TimeRange{Start: may1}, may1, true},
		{"before start", TimeRange{Start: may1}, may1.Add(-time.Second), false},
		{"end exclusive", TimeRange{End: jun1}, jun1, false},
		{"inside", TimeRange{Start: may1, End: jun1}, may1.AddDate(0, 0, 14), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.r.Contains(tt.t); got != tt.want {
				t.Errorf("%s.Contains(%v) = %v, want %v", tt.r, tt.t, got, tt.want)
			}
		})
	}
}
