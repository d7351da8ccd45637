package model

import "errors"

var (
	// ErrUserRequired is returned when a connection request is missing the user id.
	ErrUserRequired = errors.New("user id is required")

	// ErrAgentRequired is returned when a connection request is missing the agent key.
	ErrAgentRequired = errors.New("agent is required")

	// ErrUnknownAgent is returned for an agent key the backend does not serve.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrConnectionNotFound is returned when a connection is not found.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrSessionNotFound is returned when no pooled record matches a session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrRateLimited is returned when the backend signals too many requests.
	ErrRateLimited = errors.New("rate limited by backend")

	// ErrResourceExhausted is returned when the backend refuses another
	// concurrent session. The active connection is not usable afterwards.
	ErrResourceExhausted = errors.New("maximum concurrent sessions reached")

	// ErrRetryBudgetExhausted is returned once the local retry counter hits
	// its cap; creation attempts are refused until an external reset.
	ErrRetryBudgetExhausted = errors.New("maximum retry attempts reached")

	// ErrChannelClosed is returned when sending on a channel that is not open.
	ErrChannelClosed = errors.New("channel is not open")

	// ErrChannelBusy is returned when a frame send is attempted while a
	// previous frame send is still in flight. Frames are dropped, not queued.
	ErrChannelBusy = errors.New("channel busy with previous frame")
)
