package chat

import "sort"

// Presence is the set of user ids the server reports as online.
// It is only mutated by server events.
type Presence struct {
	online map[string]struct{}
}

// NewPresence returns an empty online set.
func NewPresence() *Presence {
	return &Presence{online: make(map[string]struct{})}
}

// Replace installs a full snapshot, discarding what was there.
func (p *Presence) Replace(ids []string) {
	online := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		online[id] = struct{}{}
	}
	p.online = online
}

func (p *Presence) Add(id string) {
	p.online[id] = struct{}{}
}

func (p *Presence) Remove(id string) {
	delete(p.online, id)
}

func (p *Presence) IsOnline(id string) bool {
	_, ok := p.online[id]
	return ok
}

func (p *Presence) Len() int {
	return len(p.online)
}

// Online returns the ids sorted, for stable rendering.
func (p *Presence) Online() []string {
	ids := make([]string, 0, len(p.online))
	for id := range p.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
