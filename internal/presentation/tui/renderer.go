package tui

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/muesli/termenv"

	"github.com/aretw0/weft/pkg/domain"
)

// StatusPrinter renders node status transitions as colored lines.
type StatusPrinter struct {
	w      io.Writer
	out    *termenv.Output
	labels map[string]string
	now    func() time.Time
}

// NewStatusPrinter creates a printer that names nodes by their label in g.
func NewStatusPrinter(w io.Writer, g domain.Graph) *StatusPrinter {
	labels := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		label := n.Data.Label
		if label == "" {
			label = n.ID
		}
		labels[n.ID] = label
	}
	return &StatusPrinter{
		w:      w,
		out:    termenv.NewOutput(w),
		labels: labels,
		now:    time.Now,
	}
}

// Print writes one line per status change in d, in node id order.
func (p *StatusPrinter) Print(d *domain.SnapshotDiff) {
	if d == nil {
		return
	}
	if d.IsRunning != nil {
		state := "stopped"
		if *d.IsRunning {
			state = "started"
		}
		fmt.Fprintf(p.w, "%s workflow %s\n", p.stamp(), p.out.String(state).Bold())
	}

	ids := make([]string, 0, len(d.Statuses))
	for id := range d.Statuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		st := d.Statuses[id]
		line := fmt.Sprintf("%s %-24s %s", p.stamp(), p.label(id), p.status(st))
		if msg, ok := d.Errors[id]; ok && st == domain.StatusError {
			line += " " + p.out.String(msg).Faint().String()
		}
		fmt.Fprintln(p.w, line)
	}
}

func (p *StatusPrinter) label(id string) string {
	if l, ok := p.labels[id]; ok {
		return l
	}
	return id
}

func (p *StatusPrinter) stamp() termenv.Style {
	return p.out.String(p.now().Format("15:04:05")).Faint()
}

func (p *StatusPrinter) status(st domain.Status) termenv.Style {
	prof := p.out.ColorProfile()
	s := p.out.String(string(st))
	switch st {
	case domain.StatusRunning:
		return s.Foreground(prof.Color("#fbbf24"))
	case domain.StatusSuccess:
		return s.Foreground(prof.Color("#34d399")).Bold()
	case domain.StatusError:
		return s.Foreground(prof.Color("#f87171")).Bold()
	default:
		return s.Faint()
	}
}
