package scroll

// Registry owns the keyed set of scrolling entities.
//
// Draw order is insertion order. Keys are unique; the first registration of a
// key wins until it is removed.
//
// Thread-safety: NOT safe for concurrent use. Every call must come from the
// render context.
type Registry struct {
	entities map[string]*Entity
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Add inserts a new entity for spec on a width×height frame.
//
// Returns (false, nil) when the key is already present (silent no-op, the
// existing entity is untouched) and an error when the spec is invalid.
func (r *Registry) Add(spec Spec, width, height float64) (bool, error) {
	if err := spec.Validate(); err != nil {
		return false, err
	}
	if _, exists := r.entities[spec.Key]; exists {
		return false, nil
	}

	r.entities[spec.Key] = NewEntity(spec, width, height)
	r.order = append(r.order, spec.Key)
	return true, nil
}

// Remove deletes the entity for key. Returns false if it was absent.
func (r *Registry) Remove(key string) bool {
	if _, exists := r.entities[key]; !exists {
		return false
	}
	delete(r.entities, key)

	next := r.order[:0]
	for _, k := range r.order {
		if k != key {
			next = append(next, k)
		}
	}
	r.order = next
	return true
}

// AdvanceAll advances every entity once by dt, then prunes the ones that
// became Retiring. Returns the pruned keys in draw order.
//
// The surviving set is built as a new generation, so no entity is advanced
// twice or skipped because of a removal during the pass.
func (r *Registry) AdvanceAll(dt float64, m Measurer) []string {
	for _, key := range r.order {
		r.entities[key].Advance(dt, m)
	}

	var retired []string
	next := make([]string, 0, len(r.order))
	for _, key := range r.order {
		if r.entities[key].Retiring() {
			retired = append(retired, key)
			delete(r.entities, key)
			continue
		}
		next = append(next, key)
	}
	r.order = next

	return retired
}

// RenderAll draws every entity in insertion order.
func (r *Registry) RenderAll(c Canvas, style Style) {
	for _, key := range r.order {
		r.entities[key].Render(c, style)
	}
}

// ResizeAll applies new frame bounds to every entity.
func (r *Registry) ResizeAll(width, height float64, policy ResizePolicy) {
	for _, key := range r.order {
		r.entities[key].Resize(width, height, policy)
	}
}

// Get returns the entity for key.
func (r *Registry) Get(key string) (*Entity, bool) {
	e, ok := r.entities[key]
	return e, ok
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.entities[key]
	return ok
}

// Len returns the number of registered entities.
func (r *Registry) Len() int { return len(r.order) }

// Keys returns the registered keys in draw order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

// Each calls fn for every entity in draw order.
func (r *Registry) Each(fn func(*Entity)) {
	for _, key := range r.order {
		fn(r.entities[key])
	}
}
