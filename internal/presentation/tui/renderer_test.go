package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"

	"github.com/aretw0/weft/pkg/domain"
)

func TestStatusPrinter_Print(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{
		{ID: "a", Data: domain.NodeData{Label: "Receive Telegram"}},
		{ID: "b", Data: domain.NodeData{Label: "Send Telegram"}},
	}}
	var buf bytes.Buffer
	p := NewStatusPrinter(&buf, g)
	p.out = termenv.NewOutput(&buf, termenv.WithProfile(termenv.Ascii))
	p.now = func() time.Time { return time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC) }

	running := true
	p.Print(&domain.SnapshotDiff{
		IsRunning: &running,
		Statuses:  map[string]domain.Status{"a": domain.StatusRunning, "b": domain.StatusError},
		Errors:    map[string]string{"b": "no chat ID provided"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "12:30:00 workflow started" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "Receive Telegram") || !strings.HasSuffix(lines[1], "running") {
		t.Errorf("unexpected line %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], "error no chat ID provided") {
		t.Errorf("unexpected line %q", lines[2])
	}
}

func TestStatusPrinter_NilDiff(t *testing.T) {
	var buf bytes.Buffer
	NewStatusPrinter(&buf, domain.Graph{}).Print(nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
