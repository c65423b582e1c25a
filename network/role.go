package network

// Role is what the lobby currently considers an identity to be doing. All
// transitions go through Next so an illegal combination can not be stored.
type Role uint8

const (
	RoleWaiting Role = iota
	RolePlaying
	RoleWatching
)

type RoleEvent uint8

const (
	EventMatched RoleEvent = iota
	EventAdmittedWatching
	EventSessionEnded
)

func (r Role) Next(e RoleEvent) Role {
	switch {
	case r == RoleWaiting && e == EventMatched:
		return RolePlaying
	case r == RoleWaiting && e == EventAdmittedWatching:
		return RoleWatching
	case e == EventSessionEnded:
		return RoleWaiting
	}
	return r
}

// InMatch reports whether the identity belongs to a running session, either
// seat. A reconnect for an in-match identity reattaches instead of queueing.
func (r Role) InMatch() bool {
	return r != RoleWaiting
}

func (r Role) String() string {
	switch r {
	case RolePlaying:
		return "player"
	case RoleWatching:
		return "spectator"
	default:
		return "waiting"
	}
}
