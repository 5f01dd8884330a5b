package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/aretw0/weft/pkg/domain"
)

// stopTimeout bounds the trigger teardown once the run context is gone.
const stopTimeout = 10 * time.Second

// ErrNoGraph is returned by Run when there is neither a graph file nor a
// saved snapshot to run.
var ErrNoGraph = errors.New("no graph to run: pass a graph file or save one first")

// RunOptions configures a foreground run.
type RunOptions struct {
	// GraphPath is a graph JSON file. Empty runs the saved snapshot.
	GraphPath string
	// Save persists the graph before starting.
	Save bool
	// Once stops the workflow as soon as no execution is in flight.
	Once bool
	// SkipValidation starts even when the graph has problems.
	SkipValidation bool
	// Quiet hides the banner.
	Quiet bool
	// Output receives the status lines. Defaults to Stdout.
	Output io.Writer
}

// Run starts the workflow in env and prints every status change until ctx
// is done (or, with Once, until the run goes idle). The workflow is always
// stopped before Run returns.
func Run(ctx context.Context, env *Environment, opts RunOptions) error {
	wf := env.Workflow
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	if err := loadGraph(ctx, wf, opts.GraphPath); err != nil {
		return err
	}
	if !opts.SkipValidation {
		if err := wf.Validate(); err != nil {
			return fmt.Errorf("invalid graph: %w", err)
		}
	}
	if opts.Save {
		if err := wf.Save(ctx); err != nil {
			return err
		}
	}

	if !opts.Quiet {
		tui.PrintBanner(out, weft.Version)
	}
	printer := tui.NewStatusPrinter(out, wf.Graph().Graph())

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	updates := wf.Watch(watchCtx)

	last := wf.Snapshot()
	if err := wf.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if err := wf.Stop(stopCtx); err != nil {
			env.Logger.Error("failed to stop workflow", "error", err)
		}
		stopped := false
		printer.Print(&domain.SnapshotDiff{IsRunning: &stopped})
	}()

	idle := make(chan error, 1)
	if opts.Once {
		go func() {
			idle <- wf.Wait(watchCtx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-idle:
			printer.Print(domain.Diff(&last, wf.Snapshot()))
			if err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			printer.Print(domain.Diff(&last, snap))
			last = snap
		}
	}
}

// loadGraph replaces the graph with the file at path, or with the saved
// snapshot when path is empty.
func loadGraph(ctx context.Context, wf *weft.Workflow, path string) error {
	if path != "" {
		g, err := weft.ReadGraphFile(path)
		if err != nil {
			return err
		}
		wf.Graph().Replace(g)
		return nil
	}
	loaded, err := wf.Load(ctx)
	if err != nil {
		return err
	}
	if !loaded {
		return ErrNoGraph
	}
	return nil
}
