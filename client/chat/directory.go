package chat

import "devconnect/models"

// Directory caches every known user for the lifetime of a session.
// It is filled at most once and never refreshed.
type Directory struct {
	users      []models.User
	byID       map[string]int
	byUsername map[string]int
	loaded     bool
}

// NewDirectory returns an empty, unloaded directory.
func NewDirectory() *Directory {
	return &Directory{
		byID:       make(map[string]int),
		byUsername: make(map[string]int),
	}
}

// Fill stores the fetched users. Later calls are ignored and return false.
func (d *Directory) Fill(users []models.User) bool {
	if d.loaded {
		return false
	}
	d.loaded = true
	d.users = make([]models.User, len(users))
	copy(d.users, users)
	for i, u := range d.users {
		d.byID[u.ID] = i
		d.byUsername[u.Username] = i
	}
	return true
}

func (d *Directory) Loaded() bool {
	return d.loaded
}

// All returns a copy of every entry in server order.
func (d *Directory) All() []models.User {
	users := make([]models.User, len(d.users))
	copy(users, d.users)
	return users
}

// ByID finds an entry by user id.
func (d *Directory) ByID(id string) (models.User, bool) {
	i, ok := d.byID[id]
	if !ok {
		return models.User{}, false
	}
	return d.users[i], true
}

// ByUsername finds an entry by username.
func (d *Directory) ByUsername(username string) (models.User, bool) {
	i, ok := d.byUsername[username]
	if !ok {
		return models.User{}, false
	}
	return d.users[i], true
}
