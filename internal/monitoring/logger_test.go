package monitoring

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("frame %d", 7)
	if got != "frame 7" {
		t.Errorf("custom logger got %q, want %q", got, "frame 7")
	}

	got = ""
	SetLogger(nil)
	Logf("muted")
	if got != "" {
		t.Error("no-op logger should not reach the previous logger")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}

func TestNewStreamLogger(t *testing.T) {
	if l := NewStreamLogger("[x] ", nil); l != nil {
		t.Error("nil writer should disable the stream")
	}

	var buf bytes.Buffer
	l := NewStreamLogger("[pipeline] ", &buf)
	l.Printf("hello %s", "radar")
	out := buf.String()
	if !strings.HasPrefix(out, "[pipeline] ") {
		t.Errorf("missing prefix: %q", out)
	}
	if !strings.Contains(out, "hello radar") {
		t.Errorf("missing message: %q", out)
	}
}

func TestStreamsForLevel(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		level               string
		wantDiag, wantTrace bool
	}{
		{"quiet", false, false},
		{"info", true, false},
		{"debug", true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			s := StreamsForLevel(tt.level, &buf)
			if s.Ops == nil {
				t.Error("ops stream must always be enabled")
			}
			if (s.Diag != nil) != tt.wantDiag {
				t.Errorf("diag enabled = %v, want %v", s.Diag != nil, tt.wantDiag)
			}
			if (s.Trace != nil) != tt.wantTrace {
				t.Errorf("trace enabled = %v, want %v", s.Trace != nil, tt.wantTrace)
			}
		})
	}
}
