package chat

// Target is the active conversation: the public channel or one peer.
// The zero value is the public channel.
type Target struct {
	peer string
}

// Public is the shared channel.
func Public() Target {
	return Target{}
}

// Private targets a direct conversation. An empty peer id means Public.
func Private(peerID string) Target {
	return Target{peer: peerID}
}

// IsPublic reports whether t is the shared channel.
func (t Target) IsPublic() bool {
	return t.peer == ""
}

// Peer returns the other user of a private conversation.
func (t Target) Peer() (string, bool) {
	return t.peer, t.peer != ""
}

func (t Target) String() string {
	if t.IsPublic() {
		return "public"
	}
	return "private:" + t.peer
}
