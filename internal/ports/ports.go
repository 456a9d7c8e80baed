package ports

import (
	"context"
	"encoding/json"
)

// Handler receives the raw payload of a named inbound event.
type Handler func(data json.RawMessage)

// Channel is a persistent bidirectional event channel to the media
// host. Reconnection and backoff are the channel's responsibility;
// consumers only observe connects via the OnConnect callback, which
// fires on every (re)connect. Handlers must be registered before
// Connect. Close releases the connection and stops any reconnect
// attempts; after Close no handler fires.
type Channel interface {
	Connect(ctx context.Context) error
	On(event string, handler Handler)
	OnConnect(fn func())
	OnDisconnect(fn func())
	Emit(event string, payload any) error
	Close() error
}

// Clock provides current time access.
type Clock interface {
	NowUnix() int64
	NowUnixMilli() int64
}
