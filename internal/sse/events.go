// Package sse implements Server-Sent Events for pipeline progress.
package sse

import (
	"time"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventSubtitleProcessed is sent when a subtitle's annotation is cached.
	EventSubtitleProcessed EventType = "subtitle.processed"
	// EventGroupProcessed is sent after a group went through both providers.
	EventGroupProcessed EventType = "group.processed"
	// EventGroupFailed is sent when a group was skipped after a provider error.
	EventGroupFailed EventType = "group.failed"

	// EventSessionHalted is sent when the vocabulary credential was rejected.
	// Processing stays halted until the credential changes.
	EventSessionHalted EventType = "session.halted"
	// EventSessionResumed is sent when a halted session can process again.
	EventSessionResumed EventType = "session.resumed"
	// EventSessionRateLimited is sent when a provider asked us to slow down.
	EventSessionRateLimited EventType = "session.rate_limited"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// SessionID limits delivery to clients following that session.
	// Empty means every client.
	SessionID string `json:"-"`
}

// SubtitleProcessedEventData is the data payload for subtitle events.
type SubtitleProcessedEventData struct {
	Text     string `json:"text"`
	Segments int    `json:"segments"`
	Fragment string `json:"fragment,omitempty"`
}

// GroupEventData is the data payload for group events.
type GroupEventData struct {
	Index     int    `json:"index"`
	Subtitles int    `json:"subtitles"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SessionHaltedEventData is the data payload for halted sessions.
type SessionHaltedEventData struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// RateLimitedEventData is the data payload for rate limit events.
type RateLimitedEventData struct {
	Provider string        `json:"provider"`
	Delay    time.Duration `json:"delay_ns"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewSubtitleProcessedEvent creates a subtitle.processed event.
func NewSubtitleProcessedEvent(sessionID, text string, segments int, fragment string) Event {
	return Event{
		Type:      EventSubtitleProcessed,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      SubtitleProcessedEventData{Text: text, Segments: segments, Fragment: fragment},
	}
}

// NewGroupProcessedEvent creates a group.processed event.
func NewGroupProcessedEvent(sessionID string, index, subtitles int) Event {
	return Event{
		Type:      EventGroupProcessed,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      GroupEventData{Index: index, Subtitles: subtitles},
	}
}

// NewGroupFailedEvent creates a group.failed event.
func NewGroupFailedEvent(sessionID string, index, subtitles int, code, errMsg string) Event {
	return Event{
		Type:      EventGroupFailed,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      GroupEventData{Index: index, Subtitles: subtitles, Code: code, Error: errMsg},
	}
}

// NewSessionHaltedEvent creates a session.halted event.
func NewSessionHaltedEvent(sessionID, code, reason string) Event {
	return Event{
		Type:      EventSessionHalted,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      SessionHaltedEventData{Code: code, Reason: reason},
	}
}

// NewSessionResumedEvent creates a session.resumed event.
func NewSessionResumedEvent(sessionID string) Event {
	return Event{
		Type:      EventSessionResumed,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      struct{}{},
	}
}

// NewRateLimitedEvent creates a session.rate_limited event.
func NewRateLimitedEvent(sessionID, provider string, delay time.Duration) Event {
	return Event{
		Type:      EventSessionRateLimited,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      RateLimitedEventData{Provider: provider, Delay: delay},
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data:      HeartbeatEventData{ServerTime: time.Now()},
	}
}
