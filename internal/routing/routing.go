// Package routing holds the proxy's routing table: the mapping from a
// client-presented virtual hostname to the upstream server address and
// the players currently proxied to it.
package routing

import (
	"net"
	"sync"

	appErrors "github.com/carlosrabelo/mcproxy/pkg/errors"
)

// Route is one routing-table entry: an upstream address and the
// ordered list of player names currently proxied to it. Its player
// list has its own mutex, independent of the table-level lock, so a
// reader holding the table lock never blocks on route mutation and
// vice versa.
type Route struct {
	Domain string
	Addr   *net.TCPAddr

	plMu    sync.Mutex
	players []string
}

// Players returns a snapshot of the currently-connected player names.
func (r *Route) Players() []string {
	r.plMu.Lock()
	defer r.plMu.Unlock()
	out := make([]string, len(r.players))
	copy(out, r.players)
	return out
}

// AddPlayer appends name to the route's player list.
func (r *Route) AddPlayer(name string) {
	r.plMu.Lock()
	defer r.plMu.Unlock()
	r.players = append(r.players, name)
}

// RemovePlayer removes the first occurrence of name, if present. Calling
// it for a name that is not in the list is a no-op.
func (r *Route) RemovePlayer(name string) {
	r.plMu.Lock()
	defer r.plMu.Unlock()
	for i, p := range r.players {
		if p == name {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return
		}
	}
}

// Router is the shared, concurrently-accessed routing table. Reads
// (Get, Resolve, Hosts) take a shared lock; writes (Add, Remove) take
// an exclusive one. Neither is ever held across socket I/O.
type Router struct {
	mu     sync.RWMutex
	routes map[string]*Route
}

// NewRouter returns an empty routing table.
func NewRouter() *Router {
	return &Router{routes: make(map[string]*Route)}
}

// Add creates or replaces the route for domain.
func (r *Router) Add(domain string, addr *net.TCPAddr) *Route {
	route := &Route{Domain: domain, Addr: addr}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[domain] = route
	return route
}

// Remove deletes the route for domain, returning it if it existed.
func (r *Router) Remove(domain string) (*Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[domain]
	if ok {
		delete(r.routes, domain)
	}
	return route, ok
}

// Get returns the route for domain, if any.
func (r *Router) Get(domain string) (*Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[domain]
	return route, ok
}

// Resolve is Get, shaped for the client session's handshake path: it
// returns a RoutingError when the host is unknown instead of a bool.
func (r *Router) Resolve(domain string) (*Route, error) {
	route, ok := r.Get(domain)
	if !ok {
		return nil, appErrors.Routing("no route for host " + domain)
	}
	return route, nil
}

// Hosts returns a snapshot of every known domain.
func (r *Router) Hosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for h := range r.routes {
		out = append(out, h)
	}
	return out
}
