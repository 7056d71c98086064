package driven

import "context"

// SessionListener receives lifecycle events for one connection. A client
// delivers events only to the listener passed to the Connect call that
// opened the connection.
type SessionListener interface {
	OnSessionReady()
	OnSessionError(err error)
	OnSessionDisconnected()
}

// SessionClient is the capability used to authenticate and hold a session
// with the external service. The wire protocol lives entirely behind it.
type SessionClient interface {
	// Connect authenticates with token and establishes the session, replacing
	// any previous one without a disconnect event. It blocks until the attempt
	// resolves. A nil error means the session is live; the client reports
	// later drops through l.OnSessionDisconnected, at most once per connection.
	Connect(ctx context.Context, token string, l SessionListener) error

	// Close tears down any live session without emitting a disconnect.
	Close() error
}
