package runtime

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/weft/pkg/domain"
)

// Class selects how a downstream target is dispatched.
type Class int

const (
	// ClassSequential targets run one after another, awaited.
	ClassSequential Class = iota
	// ClassNotify targets run as one joined batch that completes before any
	// ClassBackground target is dispatched.
	ClassNotify
	// ClassBackground targets are fire-and-forget. The caller never waits for them.
	ClassBackground
)

func (c Class) String() string {
	switch c {
	case ClassNotify:
		return "notify"
	case ClassBackground:
		return "background"
	}
	return "sequential"
}

// Classifier assigns a dispatch class to a downstream target.
type Classifier func(target domain.Node) Class

// DefaultClassifier sends notifications before uploads.
func DefaultClassifier(target domain.Node) Class {
	switch target.Data.Type {
	case domain.TypeTelegramSend:
		return ClassNotify
	case domain.TypeArweaveUpload:
		return ClassBackground
	}
	return ClassSequential
}

// fanout is a node's outgoing targets grouped by class, in edge order.
type fanout struct {
	notify     []domain.Node
	sequential []domain.Node
	background []domain.Node
}

func (e *Engine) partition(r *run, nodeID string) fanout {
	var f fanout
	for _, edge := range r.graph.OutgoingEdges(nodeID) {
		target, ok := r.graph.Node(edge.Target)
		if !ok {
			e.logger.Warn("edge target missing", "edge", edge.ID, "target", edge.Target)
			continue
		}
		switch e.classify(target) {
		case ClassNotify:
			f.notify = append(f.notify, target)
		case ClassBackground:
			f.background = append(f.background, target)
		default:
			f.sequential = append(f.sequential, target)
		}
	}
	return f
}

// propagate dispatches value to every downstream target of node.
//
// The notify batch is joined first, then sequential targets run in edge
// order, then background targets are handed to the supervisor. A failing
// target never prevents its siblings from being dispatched; the first
// failure is returned once the awaited part is done.
func (e *Engine) propagate(ctx context.Context, r *run, node domain.Node, value any) error {
	f := e.partition(r, node.ID)
	var errs []error

	if len(f.notify) > 0 {
		in := notifyInput(node, value)
		var g errgroup.Group
		for _, target := range f.notify {
			g.Go(func() error {
				_, err := e.execute(ctx, r, target.ID, in)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, target := range f.sequential {
		if _, err := e.execute(ctx, r, target.ID, value); err != nil {
			errs = append(errs, err)
		}
	}

	for _, target := range f.background {
		e.tasks.Go(r.ctx, r.id, "background:"+target.ID, func(ctx context.Context) error {
			_, err := e.execute(ctx, r, target.ID, value)
			return err
		})
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// notifyInput tags the value handed to notification targets with the
// position of the message relative to the background work.
func notifyInput(source domain.Node, value any) any {
	m, ok := value.(map[string]any)
	if !ok {
		return value
	}
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	out["messageContext"] = "before"
	msg, _ := source.Data.Config["message"].(string)
	if msg == "" {
		msg = "parallel before"
	}
	out["originalMessage"] = msg
	return out
}
