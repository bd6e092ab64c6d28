package gateway

import (
	"sync"
)

// Registry is the presence authority for this process: users to physical
// connections, rooms to member users. It owns nothing beyond local state
// and never talks to the broker or the api: lookups on unknown ids return
// empty, mutations on unknown ids are no-ops. Membership invariants
// (no empty rooms, presence iff connections) rely on every mutation being
// a single critical section with no calls out.
type Registry struct {
	mu sync.RWMutex

	byConn map[string]*Client             // conn id -> client
	byUser map[string]map[string]*Client  // user id -> conn id -> client
	rooms  map[string]map[string]struct{} // room name -> member user ids
	joined map[string]map[string]struct{} // user id -> room names, for disconnect cleanup

	connCount int
	userCount int
}

// Metrics is a point-in-time snapshot of the registry.
type Metrics struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
		rooms:  make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]struct{}),
	}
}

// Register binds a connection to a user. First connection flips the user
// online. Re-registering an already-bound connection overwrites: the
// connection is detached from its previous user first. When that detach
// was the previous user's last connection, the displaced user goes
// offline exactly as in Deregister (rooms vacated) and their id is
// returned so the caller can propagate the transition.
func (r *Registry) Register(c *Client, userID string) (wentOnline bool, displacedUser string) {
	if c == nil || userID == "" {
		return false, ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[c.ID]; ok {
		if prev.UserID == userID {
			return false, ""
		}
		r.detachLocked(c.ID, prev.UserID)
		if _, still := r.byUser[prev.UserID]; !still {
			for room := range r.joined[prev.UserID] {
				r.removeMemberLocked(room, prev.UserID)
			}
			delete(r.joined, prev.UserID)
			displacedUser = prev.UserID
		}
	}

	c.UserID = userID
	r.byConn[c.ID] = c
	r.connCount++

	conns := r.byUser[userID]
	if conns == nil {
		conns = make(map[string]*Client)
		r.byUser[userID] = conns
		r.userCount++
		wentOnline = true
	}
	conns[c.ID] = c
	return wentOnline, displacedUser
}

// Deregister removes a connection entirely. When it was the user's last
// one, the user goes offline and leaves every room, the personal one
// included. Unknown connection ids are a no-op.
func (r *Registry) Deregister(connID string) (userID string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	userID = c.UserID
	r.detachLocked(connID, userID)

	if _, still := r.byUser[userID]; still {
		return userID, false
	}

	// last connection gone: leave all rooms
	for room := range r.joined[userID] {
		r.removeMemberLocked(room, userID)
	}
	delete(r.joined, userID)
	return userID, true
}

// detachLocked unlinks one connection from one user and maintains the
// counters. Caller holds the lock.
func (r *Registry) detachLocked(connID, userID string) {
	if _, ok := r.byConn[connID]; !ok {
		return
	}
	delete(r.byConn, connID)
	r.connCount--

	conns := r.byUser[userID]
	if conns == nil {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		r.userCount--
	}
}

// JoinRoom puts the user in their personal room unconditionally and, when
// roomName names a shared room, in that one too (created on first join).
func (r *Registry) JoinRoom(userID, roomName string) {
	if userID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.addMemberLocked(userID, userID)
	if roomName != "" && roomName != userID {
		r.addMemberLocked(roomName, userID)
	}
}

// LeaveRoom removes the user from a shared room; a connected user never
// leaves their personal room this way. A room emptied by the leave is
// deleted on the spot.
func (r *Registry) LeaveRoom(userID, roomName string) {
	if userID == "" || roomName == "" || roomName == userID {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeMemberLocked(roomName, userID)
	if set := r.joined[userID]; set != nil {
		delete(set, roomName)
		if len(set) == 0 {
			delete(r.joined, userID)
		}
	}
}

func (r *Registry) addMemberLocked(roomName, userID string) {
	members := r.rooms[roomName]
	if members == nil {
		members = make(map[string]struct{})
		r.rooms[roomName] = members
	}
	members[userID] = struct{}{}

	set := r.joined[userID]
	if set == nil {
		set = make(map[string]struct{})
		r.joined[userID] = set
	}
	set[roomName] = struct{}{}
}

func (r *Registry) removeMemberLocked(roomName, userID string) {
	members := r.rooms[roomName]
	if members == nil {
		return
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(r.rooms, roomName)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// MembersOf lists the online members of a room. Unknown rooms are empty,
// never an error.
func (r *Registry) MembersOf(roomName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomName]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for userID := range members {
		if len(r.byUser[userID]) > 0 {
			out = append(out, userID)
		}
	}
	return out
}

// ClientsOf returns the user's live connections, any order.
func (r *Registry) ClientsOf(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	if len(conns) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// AllClients snapshots every registered connection (global broadcast).
func (r *Registry) AllClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}

// UserOf resolves a connection back to its user, "" when unbound.
func (r *Registry) UserOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byConn[connID]; ok {
		return c.UserID
	}
	return ""
}

func (r *Registry) Metrics() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Metrics{
		Connections: r.connCount,
		Users:       r.userCount,
		Rooms:       len(r.rooms),
	}
}
