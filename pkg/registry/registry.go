package registry

import (
	"sort"
	"sync"

	"github.com/aretw0/weft/pkg/ports"
)

// Kind tells how the engine drives an adapter.
type Kind int

const (
	// KindAction adapters run once per input and return a plain result.
	KindAction Kind = iota
	// KindTrigger adapters return a long-running handle that emits items.
	KindTrigger
)

// Binding is the adapter registered for one node type.
type Binding struct {
	Kind    Kind
	Action  ports.Action
	Trigger ports.Trigger
}

// Validator returns the binding's config validator, if the adapter implements one.
func (b Binding) Validator() (ports.ConfigValidator, bool) {
	var target any = b.Action
	if b.Kind == KindTrigger {
		target = b.Trigger
	}
	v, ok := target.(ports.ConfigValidator)
	return v, ok
}

// Registry manages the available capability adapters.
// Adapters are selected once by node type; the engine never branches on type strings.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[string]Binding),
	}
}

// RegisterAction binds a one-shot adapter to a node type.
// If the type is already bound, it is overwritten.
func (r *Registry) RegisterAction(nodeType string, action ports.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[nodeType] = Binding{Kind: KindAction, Action: action}
}

// RegisterTrigger binds a long-running adapter to a node type.
// If the type is already bound, it is overwritten.
func (r *Registry) RegisterTrigger(nodeType string, trigger ports.Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[nodeType] = Binding{Kind: KindTrigger, Trigger: trigger}
}

// Lookup returns the binding for a node type.
// The second result is false when no adapter is registered (pass-through).
func (r *Registry) Lookup(nodeType string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[nodeType]
	return b, ok
}

// Types returns the registered node types in lexical order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.bindings))
	for t := range r.bindings {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
