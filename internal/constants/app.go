// Package constants holds shared tuning values for kinosync.
package constants

import (
	"time"
)

// Session persistence
const (
	// SessionKey is the fixed key the files/progress snapshot is stored under.
	// Matches the key used by the browser client so a session dump is recognisable.
	SessionKey = "kino_files"

	// DefaultSessionID is used when neither --session nor KINOSYNC_SESSION is set.
	DefaultSessionID = "default"
)

// Refresh timing
const (
	// DefaultRefreshDelay is how long to wait after dispatching a mutation before
	// pulling a fresh listing. The node applies mutations asynchronously and the
	// snapshot endpoint may lag behind the command channel.
	DefaultRefreshDelay = 1 * time.Second

	// MaxRefreshDelay caps the configurable post-mutation delay (1 minute).
	MaxRefreshDelay = 60 * time.Second

	// DefaultSnapshotRetries is the retry budget for the snapshot GET.
	// Zero keeps the single-request behaviour: a failed refresh is logged and the
	// next push event or mutation triggers another one.
	DefaultSnapshotRetries = 0

	// MaxSnapshotRetries caps the configurable retry budget.
	MaxSnapshotRetries = 10
)

// Push channel
const (
	// ReconnectInitialDelay is the base delay for websocket reconnect backoff.
	ReconnectInitialDelay = 500 * time.Millisecond

	// ReconnectMaxDelay caps reconnect backoff.
	ReconnectMaxDelay = 30 * time.Second

	// HandshakeTimeout bounds the websocket opening handshake.
	HandshakeTimeout = 15 * time.Second

	// WriteTimeout bounds a single outbound command write.
	WriteTimeout = 10 * time.Second

	// PingInterval keeps idle connections alive through proxies.
	PingInterval = 30 * time.Second

	// PongWait is how long the read loop waits for any frame (or pong) before
	// treating the connection as dead. Must be larger than PingInterval.
	PongWait = 60 * time.Second

	// MaxFrameSize limits inbound frames (1 MiB). Listings never travel over
	// the push channel, so frames are small.
	MaxFrameSize = 1 << 20
)

// Event bus
const (
	// EventBusDefaultBuffer is the per-subscriber channel buffer.
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer caps subscriber buffers.
	EventBusMaxBuffer = 10000
)

// HTTP transport
const (
	HTTPIdleConnTimeout       = 90 * time.Second
	HTTPTLSHandshakeTimeout   = 10 * time.Second
	HTTPExpectContinueTimeout = 1 * time.Second
	HTTPMaxIdleConnsPerHost   = 4
	HTTPDialTimeout           = 30 * time.Second
	HTTPDialKeepAlive         = 30 * time.Second

	// DefaultProxyPort is used when [proxy] port is unset.
	DefaultProxyPort = 8080
)
