package chat

import (
	"context"
	"errors"

	"devconnect/models"
	"devconnect/protocol"
)

// ErrNotConnected is returned by Send while no transport is open.
var ErrNotConnected = errors.New("not connected")

// Transport is one open session with the messaging server.
// Send may be called concurrently with Receive.
type Transport interface {
	Send(ev protocol.Outbound) error
	// Receive blocks until the next event arrives or the session fails.
	Receive() (protocol.Inbound, error)
	Close() error
}

// Dialer opens transports. It is the seam for the websocket
// implementation and for in-memory fakes.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context) (Transport, error)

func (f DialFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// Identity is the auth collaborator: who is logged in right now.
type Identity interface {
	CurrentUser() (models.User, bool)
}

// DirectoryFetcher lists every registered user.
type DirectoryFetcher interface {
	Users(ctx context.Context) ([]models.User, error)
}
