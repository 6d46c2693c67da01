package session

import "strings"

// Identity names one bot session: the owning player identity plus the target
// host address. At most one live session exists per identity.
type Identity struct {
	Owner       string
	Destination string
}

// String returns the wire form "owner:destination" used as sessionId by the
// viewer protocol.
func (id Identity) String() string {
	return id.Owner + ":" + id.Destination
}

// ParseID parses the wire form back into an Identity. Only the first colon
// separates owner from destination, so destinations may carry a port
// ("alice:mc.example.net:25565").
func ParseID(s string) (Identity, bool) {
	owner, dest, ok := strings.Cut(s, ":")
	if !ok || owner == "" || dest == "" {
		return Identity{}, false
	}
	return Identity{Owner: owner, Destination: dest}, true
}
