package hook

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry stores action and filter handlers by hook name.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables [2]map[string][]*handler
	fired  [2]map[string]int
	seq    uint64

	config registryConfig

	// Stats
	dispatches    atomic.Uint64
	handlersRun   atomic.Uint64
	handlerErrors atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	config := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&config)
	}

	r := &Registry{config: config}
	r.reset()
	return r
}

// reset replaces both tables and the dispatch counters. Callers hold mu or
// have exclusive access.
func (r *Registry) reset() {
	for k := range r.tables {
		r.tables[k] = make(map[string][]*handler)
		r.fired[k] = make(map[string]int)
	}
}

// AddAction registers an action handler for name and returns its id.
func (r *Registry) AddAction(name string, a Action, opts ...Option) (string, error) {
	if a == nil {
		return "", ErrNilCallback
	}
	return r.add(KindAction, name, a, nil, opts)
}

// AddFilter registers a filter handler for name and returns its id.
func (r *Registry) AddFilter(name string, f Filter, opts ...Option) (string, error) {
	if f == nil {
		return "", ErrNilCallback
	}
	return r.add(KindFilter, name, nil, f, opts)
}

// add inserts a handler at its ordered position.
func (r *Registry) add(kind Kind, name string, a Action, f Filter, opts []Option) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	var cfg handlerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.once && kind == KindFilter {
		return "", ErrOnceFilter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.tables[kind][name]

	id := cfg.id
	if id != "" {
		if indexByID(list, id) >= 0 {
			return "", fmt.Errorf("%s %q: %w: %s", kind, name, ErrDuplicateID, id)
		}
	} else {
		id = r.config.ids.NewID()
		// Generated ids are unique in practice, but a custom generator may
		// collide with an id chosen through WithID.
		for indexByID(list, id) >= 0 {
			id = r.config.ids.NewID()
		}
	}

	priority := r.config.defaultPriority
	if cfg.hasPriority {
		priority = cfg.priority
	}

	r.seq++
	h := &handler{
		id:       id,
		kind:     kind,
		hook:     name,
		seq:      r.seq,
		priority: priority,
		receiver: cfg.receiver,
		once:     cfg.once,
		action:   a,
		filter:   f,
	}

	// The new handler has the highest sequence number, so it goes after
	// every handler with a priority <= its own.
	pos := sort.Search(len(list), func(i int) bool {
		return h.before(list[i])
	})
	list = append(list, nil)
	copy(list[pos+1:], list[pos:])
	list[pos] = h
	r.tables[kind][name] = list

	r.config.logger.Debug("hook registered",
		"kind", kind.String(),
		"hook", name,
		"id", id,
		"priority", priority,
		"once", cfg.once,
	)

	return id, nil
}

// RemoveAction removes the action with the given id.
// It returns true if a handler was removed.
func (r *Registry) RemoveAction(name, id string) bool {
	return r.removeWhere(KindAction, name, func(h *handler) bool { return h.id == id })
}

// RemoveActionCallback removes the first action registered for name whose
// callback is a.
func (r *Registry) RemoveActionCallback(name string, a Action) bool {
	return r.removeWhere(KindAction, name, func(h *handler) bool { return sameCallback(h.action, a) })
}

// RemoveFilter removes the filter with the given id.
func (r *Registry) RemoveFilter(name, id string) bool {
	return r.removeWhere(KindFilter, name, func(h *handler) bool { return h.id == id })
}

// RemoveFilterCallback removes the first filter registered for name whose
// callback is f.
func (r *Registry) RemoveFilterCallback(name string, f Filter) bool {
	return r.removeWhere(KindFilter, name, func(h *handler) bool { return sameCallback(h.filter, f) })
}

// Remove removes a handler by kind and id.
func (r *Registry) Remove(kind Kind, name, id string) bool {
	return r.removeWhere(kind, name, func(h *handler) bool { return h.id == id })
}

// removeWhere removes the first handler in list order matching pred.
func (r *Registry) removeWhere(kind Kind, name string, pred func(*handler) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.tables[kind][name]
	for i, h := range list {
		if pred(h) {
			r.removeAt(kind, name, list, i)
			return true
		}
	}
	return false
}

// removeAt deletes list[i]. Callers hold mu.
func (r *Registry) removeAt(kind Kind, name string, list []*handler, i int) {
	removed := list[i]

	// Build a new slice rather than shifting in place; the old backing
	// array may still be referenced by a snapshot.
	next := make([]*handler, 0, len(list)-1)
	next = append(next, list[:i]...)
	next = append(next, list[i+1:]...)

	if len(next) == 0 {
		delete(r.tables[kind], name)
	} else {
		r.tables[kind][name] = next
	}

	r.config.logger.Debug("hook removed",
		"kind", kind.String(),
		"hook", name,
		"id", removed.id,
	)
}

// claim removes h from the live table if it is still registered.
// It is used to consume once handlers exactly one time.
func (r *Registry) claim(h *handler) bool {
	return r.removeWhere(h.kind, h.hook, func(other *handler) bool { return other == h })
}

// HasAction reports whether any action is registered for name.
func (r *Registry) HasAction(name string) bool {
	return r.has(KindAction, name)
}

// HasFilter reports whether any filter is registered for name.
func (r *Registry) HasFilter(name string) bool {
	return r.has(KindFilter, name)
}

func (r *Registry) has(kind Kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tables[kind][name]) > 0
}

// RemoveAllActions removes every action registered for name.
// It returns true if anything was registered.
func (r *Registry) RemoveAllActions(name string) bool {
	return r.removeAll(KindAction, name)
}

// RemoveAllFilters removes every filter registered for name.
func (r *Registry) RemoveAllFilters(name string) bool {
	return r.removeAll(KindFilter, name)
}

func (r *Registry) removeAll(kind Kind, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.tables[kind][name])
	if n == 0 {
		return false
	}
	delete(r.tables[kind], name)

	r.config.logger.Debug("hook cleared", "kind", kind.String(), "hook", name, "removed", n)
	return true
}

// ClearAll removes every handler from both tables and resets the dispatch
// counters reported by DidAction and DidFilter.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reset()
}

// DidAction returns how many times name has been dispatched with DoAction.
func (r *Registry) DidAction(name string) int {
	return r.did(KindAction, name)
}

// DidFilter returns how many times name has been dispatched with ApplyFilters.
func (r *Registry) DidFilter(name string) int {
	return r.did(KindFilter, name)
}

func (r *Registry) did(kind Kind, name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.fired[kind][name]
}

// Handlers returns the handlers registered for name in execution order.
func (r *Registry) Handlers(kind Kind, name string) []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.tables[kind][name]
	if len(list) == 0 {
		return nil
	}

	result := make([]HandlerInfo, len(list))
	for i, h := range list {
		result[i] = h.info()
	}
	return result
}

// Names returns the hook names with at least one handler, sorted.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.tables[kind]) == 0 {
		return nil
	}

	names := make([]string, 0, len(r.tables[kind]))
	for name := range r.tables[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of handlers of a kind.
func (r *Registry) Count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.count(kind)
}

func (r *Registry) count(kind Kind) int {
	n := 0
	for _, list := range r.tables[kind] {
		n += len(list)
	}
	return n
}

// Stats returns current registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	actions, filters := r.count(KindAction), r.count(KindFilter)
	r.mu.RUnlock()

	return Stats{
		Dispatches:    r.dispatches.Load(),
		HandlersRun:   r.handlersRun.Load(),
		HandlerErrors: r.handlerErrors.Load(),
		Actions:       actions,
		Filters:       filters,
	}
}

// indexByID returns the index of the handler with id, or -1.
func indexByID(list []*handler, id string) int {
	for i, h := range list {
		if h.id == id {
			return i
		}
	}
	return -1
}
