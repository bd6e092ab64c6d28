package gateway

// Sharding pins every user to exactly one gateway instance so that all of
// a user's connections land where their registry state lives. The resolver
// runs during the handshake, before any join is possible, and must compute
// the same answer on every instance.

// ResolveShard sums the code points of userID and reduces modulo
// totalInstances. Deterministic and dependency-free on purpose: any
// instance (or the client) can recompute it.
func ResolveShard(userID string, totalInstances int) int {
	if totalInstances <= 1 {
		return 0
	}
	sum := 0
	for _, r := range userID {
		sum += int(r)
	}
	return sum % totalInstances
}

// Admission is the outcome of the handshake gate. Rejection is a redirect,
// not a fault: Target tells the client where to reconnect.
type Admission struct {
	Allowed bool
	Target  int
}

type ShardResolver struct {
	instanceID     int
	totalInstances int
}

func NewShardResolver(instanceID, totalInstances int) *ShardResolver {
	if totalInstances <= 0 {
		totalInstances = 1
	}
	return &ShardResolver{instanceID: instanceID, totalInstances: totalInstances}
}

// Admit decides during the handshake. Connections without a user id are
// not shardable and always pass.
func (s *ShardResolver) Admit(userID string) Admission {
	if userID == "" {
		return Admission{Allowed: true, Target: s.instanceID}
	}
	target := ResolveShard(userID, s.totalInstances)
	return Admission{Allowed: target == s.instanceID, Target: target}
}
