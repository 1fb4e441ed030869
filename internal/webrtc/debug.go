package webrtc

import "sync/atomic"

// debugChannel controls whether verbose data channel logs are emitted.
var debugChannel atomic.Bool

// SetDebugLogging enables/disables verbose WebRTC data channel logs.
func SetDebugLogging(enabled bool) {
	debugChannel.Store(enabled)
}

// debugEnabled reports whether data channel debug logs are enabled.
func debugEnabled() bool {
	return debugChannel.Load()
}
