package runid

import (
	"strings"
	"testing"
)

func TestNewProducesValidIDs(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := New()
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if !IsValid(id) {
			t.Fatalf("New() produced invalid id %q", id)
		}
		if seen[id] {
			t.Fatalf("New() produced duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewIDsAreTimeOrderable(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatal(err)
	}
	b, err := New()
	if err != nil {
		t.Fatal(err)
	}
	// UUIDv7 embeds a millisecond timestamp in the leading bits, so ids
	// allocated in sequence sort lexicographically.
	if strings.Compare(a, b) > 0 {
		t.Errorf("ids should be non-decreasing: %q then %q", a, b)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"valid lowercase", "run-01890a5d-ac96-774b-bcce-b302099a8057", true},
		{"valid uppercase", "RUN-01890A5D-AC96-774B-BCCE-B302099A8057", true},
		{"missing prefix", "01890a5d-ac96-774b-bcce-b302099a8057", false},
		{"wrong version nibble", "run-01890a5d-ac96-474b-bcce-b302099a8057", false},
		{"wrong variant nibble", "run-01890a5d-ac96-774b-7cce-b302099a8057", false},
		{"path traversal", "run-../../etc/passwd", false},
		{"empty", "", false},
		{"truncated", "run-01890a5d-ac96-774b-bcce", false},
		{"trailing junk", "run-01890a5d-ac96-774b-bcce-b302099a8057x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.id); got != tt.want {
				t.Errorf("IsValid(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestValidateError(t *testing.T) {
	if err := Validate("nonsense"); err == nil {
		t.Error("Validate should reject junk")
	}
	id, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(id); err != nil {
		t.Errorf("Validate(%q) = %v, want nil", id, err)
	}
}
