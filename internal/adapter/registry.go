package adapter

// Registry is an identifier-keyed adapter table preserving registration
// order. Re-registering an identifier replaces the previous adapter in
// place (last-write-wins), which supports adapter hot-swap when the source
// mirror path changes.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds or replaces the adapter under its identifier.
func (r *Registry) Register(a Adapter) {
	id := a.ID()
	if _, exists := r.adapters[id]; !exists {
		r.order = append(r.order, id)
	}
	r.adapters[id] = a
}

// Get returns the adapter for id, or false if none is registered.
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// IDs returns every registered identifier in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []Adapter {
	all := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.adapters[id])
	}
	return all
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.order)
}
