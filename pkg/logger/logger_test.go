package logger

import "testing"

func TestScopeMatching(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		scope    string
		want     bool
	}{
		{"exact match", []string{"engine:emit"}, "engine:emit", true},
		{"no match", []string{"engine:emit"}, "runlog:store", false},
		{"wildcard all", []string{"*"}, "anything", true},
		{"prefix wildcard", []string{"engine:*"}, "engine:emit", true},
		{"prefix wildcard miss", []string{"engine:*"}, "runlog:store", false},
		{"multiple patterns", []string{"runlog:store", "engine:*"}, "runlog:store", true},
		{"empty", nil, "engine:emit", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchScope(tt.patterns, tt.scope)
			if got != tt.want {
				t.Errorf("match(%v, %q) = %v, want %v", tt.patterns, tt.scope, got, tt.want)
			}
		})
	}
}

func TestDisabledLoggerIsSilent(t *testing.T) {
	l := &Logger{scope: "test:silent", enabled: false}
	// Must not panic or write; Print on a disabled logger is a no-op.
	l.Print("should not appear")
	l.Printf("should not appear: %d", 42)
	if l.Enabled() {
		t.Error("logger should be disabled")
	}
}

func TestExtractErrorMessage(t *testing.T) {
	if got := ExtractErrorMessage(nil); got != "" {
		t.Errorf("ExtractErrorMessage(nil) = %q, want empty", got)
	}
}
