// Package stream supervises camera relay sessions: it owns the session
// registry, renders the HLS manifest viewers fetch, probes session health
// and exposes the lifecycle over HTTP.
package stream

import (
	"errors"
	"time"

	"camera-relay/internal/camera"
	"camera-relay/internal/quality"
)

// Status is the lifecycle state of a relay session.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusError    Status = "error"
)

var (
	// ErrCameraNotFound is returned by Start when the camera id has no
	// stored configuration. The registry is left untouched.
	ErrCameraNotFound = errors.New("camera not found")

	// ErrPersistFailed wraps a failed online-status write-through. The
	// in-memory transition has already happened when it is reported.
	ErrPersistFailed = errors.New("persisting camera status failed")

	// ErrProbeUnreachable is recorded when the relay address could not be
	// fetched or answered with a non-success status.
	ErrProbeUnreachable = errors.New("relay unreachable")

	// ErrProbeTimeout is recorded when a probe ran out of time.
	ErrProbeTimeout = errors.New("relay probe timed out")
)

// Session is the relay state of one camera.
type Session struct {
	CameraID    string          `json:"camera_id"`
	SourceURI   string          `json:"source_uri"`
	RelayURI    string          `json:"relay_uri"`
	Status      Status          `json:"status"`
	LastSeen    time.Time       `json:"last_seen"`
	StartedAt   time.Time       `json:"started_at"`
	ViewerCount int             `json:"viewer_count"`
	Quality     quality.Profile `json:"quality"`
	LastError   string          `json:"last_error,omitempty"`
}

// Active reports whether the session is currently relaying.
func (s Session) Active() bool {
	return s.Status == StatusActive
}

// Redacted returns a copy with any password in SourceURI masked.
func (s Session) Redacted() Session {
	s.SourceURI = camera.RedactURI(s.SourceURI)
	return s
}
