package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		quiet     bool
		wantInfo  bool
		wantDebug bool
		wantWarn  bool
	}{
		{"default", 0, false, false, false, true},
		{"verbose", 1, false, true, false, true},
		{"very verbose", 2, false, true, true, true},
		{"quiet", 2, true, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, tt.verbosity, tt.quiet)
			l.Debug("dbg")
			l.Info("inf")
			l.Warn("wrn")
			out := buf.String()
			if got := strings.Contains(out, "dbg"); got != tt.wantDebug {
				t.Errorf("debug shown = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "inf"); got != tt.wantInfo {
				t.Errorf("info shown = %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(out, "wrn"); got != tt.wantWarn {
				t.Errorf("warn shown = %v, want %v", got, tt.wantWarn)
			}
			if strings.Contains(out, "time=") {
				t.Error("timestamps should be stripped")
			}
		})
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	// Must not panic.
	OrDiscard(nil).Error("dropped")
}
