package application

import "errors"

var (
	// ErrEmptyCredential is returned by SubmitCredential for a blank token.
	ErrEmptyCredential = errors.New("credential must not be empty")

	// ErrConnectFailed wraps a rejected connect attempt. The session returns to
	// disconnected and is not retried automatically.
	ErrConnectFailed = errors.New("connect failed")

	// ErrRetryExhausted is reported when consecutive disconnects reach the
	// retry limit and a new credential is requested.
	ErrRetryExhausted = errors.New("reconnect retries exhausted")

	// ErrSessionError wraps error events reported by the session client.
	ErrSessionError = errors.New("session client error")
)
