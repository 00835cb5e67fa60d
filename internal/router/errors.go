package router

import "errors"

// Sentinel errors surfaced to the I/O layer via Outcome. Resource
// exhaustion and failures to build or send a frame reach the caller as
// non-critical; invariant violations reach it as fatal. Everything else
// becomes an ICMP reply or a silent drop.
var (
	// ErrWithheldFrameLimit means a pending entry's withheld-frame list is
	// already full; this is the resource-exhaustion path.
	ErrWithheldFrameLimit = errors.New("router: withheld frame limit reached")

	// ErrSerialize means assembling an outgoing frame failed -- treated as
	// non-critical since the frame is simply dropped.
	ErrSerialize = errors.New("router: failed to serialize outgoing frame")

	// ErrSendFrame means the I/O layer's SendFrame returned an error.
	ErrSendFrame = errors.New("router: send_frame failed")

	// ErrPendingEntryCorrupt indicates an internal invariant was violated:
	// a pending entry observed with times_sent already above the retry
	// cap. This can only happen from a programming error, so it is fatal.
	ErrPendingEntryCorrupt = errors.New("router: pending entry violates times_sent invariant")
)
