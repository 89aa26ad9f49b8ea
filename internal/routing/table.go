package routing

import (
	"sort"
	"sync"
	"sync/atomic"
)

// topicSet is a per-topic-key set of subscriber targets. Reads
// (snapshot) never take a lock: they read a single atomic pointer to an
// immutable slice. Writers (add/remove) hold mu only to serialize with
// each other while building the next copy-on-write snapshot.
type topicSet struct {
	mu   sync.Mutex
	data atomic.Pointer[[]string]
}

func newTopicSet() *topicSet {
	ts := &topicSet{}
	empty := []string{}
	ts.data.Store(&empty)
	return ts
}

func (ts *topicSet) snapshot() []string {
	p := ts.data.Load()
	if p == nil {
		return nil
	}
	out := make([]string, len(*p))
	copy(out, *p)
	return out
}

func (ts *topicSet) add(target string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	cur := *ts.data.Load()
	for _, t := range cur {
		if t == target {
			return ErrDuplicateRoute
		}
	}
	next := make([]string, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = target
	ts.data.Store(&next)
	return nil
}

func (ts *topicSet) remove(target string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	cur := *ts.data.Load()
	idx := -1
	for i, t := range cur {
		if t == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrRouteNotFound
	}
	next := make([]string, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	ts.data.Store(&next)
	return nil
}

// removeByTarget removes every occurrence of target, reporting whether
// anything was removed.
func (ts *topicSet) removeByTarget(target string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	cur := *ts.data.Load()
	next := make([]string, 0, len(cur))
	removed := false
	for _, t := range cur {
		if t == target {
			removed = true
			continue
		}
		next = append(next, t)
	}
	if removed {
		ts.data.Store(&next)
	}
	return removed
}

func (ts *topicSet) empty() bool {
	return len(*ts.data.Load()) == 0
}

// Table is the process-wide cell-message routing registry of spec
// §4.2. The zero value is not usable; construct with New.
type Table struct {
	exactMu sync.RWMutex
	exact   map[string]Route

	aliasMu sync.RWMutex
	alias   map[string]Route

	wellKnownMu sync.RWMutex
	wellKnown   map[string]Route

	domainMu sync.RWMutex
	domain   map[string]Route

	topicsMu sync.RWMutex
	topics   map[string]*topicSet

	defaultRoute  atomic.Pointer[Route]
	dumpsterRoute atomic.Pointer[Route]
}

// New returns an empty routing table.
func New() *Table {
	return &Table{
		exact:     make(map[string]Route),
		alias:     make(map[string]Route),
		wellKnown: make(map[string]Route),
		domain:    make(map[string]Route),
		topics:    make(map[string]*topicSet),
	}
}

// Add inserts r, failing with ErrDuplicateRoute if an equivalent route
// (same kind and key, or an already-occupied singleton) exists.
func (t *Table) Add(r Route) error {
	switch r.Kind {
	case Exact:
		return addKeyed(&t.exactMu, t.exact, r)
	case Alias:
		return addKeyed(&t.aliasMu, t.alias, r)
	case WellKnown:
		return addKeyed(&t.wellKnownMu, t.wellKnown, r)
	case Domain:
		return addKeyed(&t.domainMu, t.domain, r)
	case Topic:
		return t.addTopic(r)
	case Default:
		if !t.defaultRoute.CompareAndSwap(nil, &r) {
			return ErrDuplicateRoute
		}
		return nil
	case Dumpster:
		if !t.dumpsterRoute.CompareAndSwap(nil, &r) {
			return ErrDuplicateRoute
		}
		return nil
	default:
		return ErrDuplicateRoute
	}
}

func addKeyed(mu *sync.RWMutex, m map[string]Route, r Route) error {
	mu.Lock()
	defer mu.Unlock()
	k := r.key()
	if _, ok := m[k]; ok {
		return ErrDuplicateRoute
	}
	m[k] = r
	return nil
}

func (t *Table) addTopic(r Route) error {
	k := r.key()
	t.topicsMu.Lock()
	ts, ok := t.topics[k]
	if !ok {
		ts = newTopicSet()
		t.topics[k] = ts
	}
	t.topicsMu.Unlock()
	return ts.add(r.Target)
}

// Delete removes r, failing with ErrRouteNotFound if no equivalent
// route exists.
func (t *Table) Delete(r Route) error {
	switch r.Kind {
	case Exact:
		return deleteKeyed(&t.exactMu, t.exact, r)
	case Alias:
		return deleteKeyed(&t.aliasMu, t.alias, r)
	case WellKnown:
		return deleteKeyed(&t.wellKnownMu, t.wellKnown, r)
	case Domain:
		return deleteKeyed(&t.domainMu, t.domain, r)
	case Topic:
		return t.deleteTopic(r)
	case Default:
		if cur := t.defaultRoute.Load(); cur == nil || !t.defaultRoute.CompareAndSwap(cur, nil) {
			return ErrRouteNotFound
		}
		return nil
	case Dumpster:
		if cur := t.dumpsterRoute.Load(); cur == nil || !t.dumpsterRoute.CompareAndSwap(cur, nil) {
			return ErrRouteNotFound
		}
		return nil
	default:
		return ErrRouteNotFound
	}
}

func deleteKeyed(mu *sync.RWMutex, m map[string]Route, r Route) error {
	mu.Lock()
	defer mu.Unlock()
	k := r.key()
	if _, ok := m[k]; !ok {
		return ErrRouteNotFound
	}
	delete(m, k)
	return nil
}

func (t *Table) deleteTopic(r Route) error {
	k := r.key()
	t.topicsMu.RLock()
	ts, ok := t.topics[k]
	t.topicsMu.RUnlock()
	if !ok {
		return ErrRouteNotFound
	}
	return ts.remove(r.Target)
}

// DeleteByTarget removes every route of any kind whose Target equals
// target, returning the set of removed routes.
func (t *Table) DeleteByTarget(target string) []Route {
	var removed []Route

	removed = append(removed, deleteAllByTarget(&t.exactMu, t.exact, Exact, target)...)
	removed = append(removed, deleteAllByTarget(&t.aliasMu, t.alias, Alias, target)...)
	removed = append(removed, deleteAllByTarget(&t.wellKnownMu, t.wellKnown, WellKnown, target)...)
	removed = append(removed, deleteAllByTarget(&t.domainMu, t.domain, Domain, target)...)

	t.topicsMu.Lock()
	for k, ts := range t.topics {
		if ts.removeByTarget(target) {
			removed = append(removed, Route{Kind: Topic, Key: Address{CellName: k}, Target: target})
		}
	}
	t.topicsMu.Unlock()

	if p := t.defaultRoute.Load(); p != nil && p.Target == target {
		if t.defaultRoute.CompareAndSwap(p, nil) {
			removed = append(removed, *p)
		}
	}
	if p := t.dumpsterRoute.Load(); p != nil && p.Target == target {
		if t.dumpsterRoute.CompareAndSwap(p, nil) {
			removed = append(removed, *p)
		}
	}

	return removed
}

func deleteAllByTarget(mu *sync.RWMutex, m map[string]Route, kind Kind, target string) []Route {
	mu.Lock()
	defer mu.Unlock()
	var removed []Route
	for k, r := range m {
		if r.Target == target {
			removed = append(removed, r)
			delete(m, k)
		}
	}
	_ = kind
	return removed
}

// Find resolves address in the order EXACT -> (WELLKNOWN if the domain
// is "local", else DOMAIN) -> DEFAULT, returning the target gateway and
// whether any rule matched.
func (t *Table) Find(addr Address) (target string, ok bool) {
	t.exactMu.RLock()
	r, found := t.exact[addr.String()]
	t.exactMu.RUnlock()
	if found {
		return r.Target, true
	}

	if addr.IsLocal() {
		t.wellKnownMu.RLock()
		r, found = t.wellKnown[addr.CellName]
		t.wellKnownMu.RUnlock()
	} else {
		t.domainMu.RLock()
		r, found = t.domain[addr.DomainName]
		t.domainMu.RUnlock()
	}
	if found {
		return r.Target, true
	}

	if p := t.defaultRoute.Load(); p != nil {
		return p.Target, true
	}
	return "", false
}

// FindTopicRoutes returns the subscriber set for addr's cell name, but
// only when addr's domain is "local"; otherwise it returns an empty set.
func (t *Table) FindTopicRoutes(addr Address) []string {
	if !addr.IsLocal() {
		return nil
	}
	t.topicsMu.RLock()
	ts, ok := t.topics[addr.CellName]
	t.topicsMu.RUnlock()
	if !ok {
		return nil
	}
	return ts.snapshot()
}

// GetRoutingList returns a snapshot of every non-empty route currently
// registered. Each per-map lock is acquired in turn; the result is not
// a globally consistent snapshot across maps.
func (t *Table) GetRoutingList() []Route {
	var out []Route

	out = append(out, snapshotKeyed(&t.exactMu, t.exact)...)
	out = append(out, snapshotKeyed(&t.aliasMu, t.alias)...)
	out = append(out, snapshotKeyed(&t.wellKnownMu, t.wellKnown)...)
	out = append(out, snapshotKeyed(&t.domainMu, t.domain)...)

	t.topicsMu.RLock()
	for k, ts := range t.topics {
		for _, target := range ts.snapshot() {
			out = append(out, Route{Kind: Topic, Key: Address{CellName: k}, Target: target})
		}
	}
	t.topicsMu.RUnlock()

	if p := t.defaultRoute.Load(); p != nil {
		out = append(out, *p)
	}
	if p := t.dumpsterRoute.Load(); p != nil {
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].key() < out[j].key()
	})
	return out
}

func snapshotKeyed(mu *sync.RWMutex, m map[string]Route) []Route {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Route, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}

// String renders the routing list for debugging/administration.
func (t *Table) String() string {
	list := t.GetRoutingList()
	s := ""
	for _, r := range list {
		s += r.Kind.String() + " " + r.key() + " -> " + r.Target + "\n"
	}
	return s
}
