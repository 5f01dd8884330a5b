/*
Package weft executes visual workflow graphs: triggers, actions and logic
nodes wired together by edges.

A Workflow owns an editable graph (nodes, edges, selection) and an engine
that runs it. Nodes with no incoming edge are sources; Start executes each
of them on its own task. Triggers stay armed and emit items, every other
node runs once per input and forwards its result along its outgoing edges.

# Concept

Each node is driven through pending, running, success and error. Results
flow downstream under a fixed policy: notification targets run together and
are awaited first, remaining targets run one after another, and background
targets (uploads) are spawned last and never awaited. Stop tears down every
armed trigger and resets all execution state.

Adapters are bound to node types through a registry. A node whose type has
no adapter passes its input through unchanged.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/weft"
		"github.com/aretw0/weft/pkg/adapters/backend"
		"github.com/aretw0/weft/pkg/domain"
	)

	func main() {
		client, err := backend.New("http://localhost:3000/api")
		if err != nil {
			log.Fatal(err)
		}

		wf := weft.New(weft.WithAdapters(weft.DefaultAdapters(client, nil)))

		recv, _ := wf.Graph().AddNode(domain.TypeTelegramReceive, domain.Position{})
		send, _ := wf.Graph().AddNode(domain.TypeTelegramSend, domain.Position{X: 200})
		wf.Graph().AddEdge(domain.ConnectParams{Source: recv.ID, Target: send.ID})

		ctx := context.Background()
		if err := wf.Start(ctx); err != nil {
			log.Fatal(err)
		}
		defer wf.Stop(ctx)

		for snap := range wf.Watch(ctx) {
			log.Println(snap.NodeExecutionState)
		}
	}
*/
package weft
