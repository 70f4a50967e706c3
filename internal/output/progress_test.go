package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar_NonTTYPrintsFinalStateOnce(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(3, "Importing sessions...")
	p.SetWriter(&buf)

	p.Increment()
	p.Increment()
	if buf.Len() != 0 {
		t.Errorf("expected no output before completion, got %q", buf.String())
	}
	p.Increment()
	p.Increment() // past total is clamped
	p.Finish()

	out := buf.String()
	if strings.Count(out, "100%") != 1 {
		t.Errorf("expected exactly one final line, got %q", out)
	}
	if !strings.Contains(out, "Importing sessions...") {
		t.Errorf("expected description in output, got %q", out)
	}
}

func TestProgressBar_FinishEarly(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(4, "work")
	p.SetWriter(&buf)

	p.Increment()
	p.Finish()

	if !strings.Contains(buf.String(), "100%") {
		t.Errorf("Finish() should render a full bar, got %q", buf.String())
	}
}

func TestProgressBar_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(0, "nothing")
	p.SetWriter(&buf)
	p.Finish()

	if !strings.Contains(buf.String(), "100% nothing") {
		t.Errorf("empty bar should render complete, got %q", buf.String())
	}
}

func TestSpinner_NonTTY(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinnerTo(&buf, "Opening tabs...")
	s.Start()
	s.Start()
	s.StopWithMessage("✓ Done")
	s.Stop()

	want := "Opening tabs...\n✓ Done\n"
	if buf.String() != want {
		t.Errorf("spinner output = %q, want %q", buf.String(), want)
	}
}
