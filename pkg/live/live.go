// Package live defines the live-stream descriptor returned by livegate and
// the error kinds every stage of a lookup can fail with.
//
// Check failures with errors.Is, e.g. errors.Is(err, live.ErrNotFound).
package live

import (
	"errors"
	"fmt"
)

// Room status values reported by the platform.
const (
	StatusPreparing = 1
	StatusLive      = 2
	StatusPaused    = 3
	StatusEnded     = 4
)

// Info is the decoded descriptor of a live room.
type Info struct {
	Title      string            `json:"title" yaml:"title" validate:"required"`
	Status     int               `json:"status" yaml:"status"`
	RoomID     string            `json:"room_id,omitempty" yaml:"room_id,omitempty"`
	WebRID     string            `json:"web_rid,omitempty" yaml:"web_rid,omitempty"`
	Owner      string            `json:"owner,omitempty" yaml:"owner,omitempty"`
	Avatar     string            `json:"avatar,omitempty" yaml:"avatar,omitempty" validate:"omitempty,url"`
	Cover      string            `json:"cover,omitempty" yaml:"cover,omitempty" validate:"omitempty,url"`
	Viewers    string            `json:"viewers,omitempty" yaml:"viewers,omitempty"`
	StreamURLs map[string]string `json:"stream_urls,omitempty" yaml:"stream_urls,omitempty" validate:"omitempty,dive,url"`
	HLSURLs    map[string]string `json:"hls_urls,omitempty" yaml:"hls_urls,omitempty" validate:"omitempty,dive,url"`
}

// IsLive reports whether the room is currently broadcasting.
func (i Info) IsLive() bool {
	return i.Status == StatusLive
}

// StatusText returns a human label for Status.
func (i Info) StatusText() string {
	switch i.Status {
	case StatusPreparing:
		return "preparing"
	case StatusLive:
		return "live"
	case StatusPaused:
		return "paused"
	case StatusEnded:
		return "ended"
	default:
		return fmt.Sprintf("unknown(%d)", i.Status)
	}
}

// Error kinds surfaced by GetInfo.
var (
	// ErrTransport indicates a network or page-load failure.
	ErrTransport = errors.New("transport error")
	// ErrNotFound indicates expected content was absent: no embedded data
	// element, undecodable element text, or an empty response body.
	ErrNotFound = errors.New("content not found")
	// ErrParse indicates the embedded data was not valid JSON.
	ErrParse = errors.New("malformed json")
	// ErrMapping indicates valid JSON that does not match the room schema.
	// The concrete error is a *MappingError naming the field.
	ErrMapping = errors.New("schema mismatch")
	// ErrChallengeExhausted indicates the anti-bot challenge kept coming back
	// after the configured number of reloads.
	ErrChallengeExhausted = errors.New("anti-bot challenge retries exhausted")
	// ErrAcquireTimeout indicates no qualifying cookie set appeared in time.
	ErrAcquireTimeout = errors.New("session acquisition timed out")
	// ErrSessionReset indicates the engine was torn down while the caller waited.
	ErrSessionReset = errors.New("session reset")
	// ErrInvalidRef indicates a room reference that is not a douyin room.
	ErrInvalidRef = errors.New("invalid room reference")
)

// MappingError names the JSON field that violated the room schema.
// It matches ErrMapping with errors.Is.
type MappingError struct {
	Field string
	Err   error
}

func (e *MappingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: field %q: %v", ErrMapping, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: field %q", ErrMapping, e.Field)
}

// Is makes errors.Is(err, ErrMapping) true for any *MappingError.
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

func (e *MappingError) Unwrap() error {
	return e.Err
}
