// Package channel defines the transport boundary. Raw transport
// concerns (webhook verification, media download) live outside the
// engine; these types and ports are the whole contract.
package channel

import (
	"context"
	"time"
)

// EventKind mirrors the inbound payload variants the engine accepts.
type EventKind string

const (
	KindText             EventKind = "text"
	KindButton           EventKind = "button"
	KindVoiceText        EventKind = "voice_text"
	KindImageDescription EventKind = "image_description"
	KindFollowupTick     EventKind = "followup_tick"
	KindGhostTick        EventKind = "ghost_tick"
)

// InboundEvent is one transport-level event routed to a dispatcher.
type InboundEvent struct {
	TenantID        uint      `json:"tenant_id"`
	Channel         string    `json:"channel"`
	ChannelIdentity string    `json:"channel_identity"`
	Kind            EventKind `json:"kind"`
	Payload         string    `json:"payload"`
	SenderName      string    `json:"sender_name,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Reply is the outbound message a dispatcher delivers.
type Reply struct {
	ChannelIdentity string   `json:"channel_identity"`
	Text            string   `json:"text"`
	Buttons         []string `json:"buttons,omitempty"`
	RemoveKeyboard  bool     `json:"remove_keyboard,omitempty"`
}

// Sender delivers replies over one tenant's channel connection.
type Sender interface {
	Send(ctx context.Context, reply Reply) error
}

// UpdateSource streams inbound events for one (tenant, channel) pair.
// Events() is closed when the source stops.
type UpdateSource interface {
	Events() <-chan InboundEvent

	// Run blocks, pumping transport updates into Events until ctx is
	// canceled. Authentication failures surface as the return error.
	Run(ctx context.Context) error
}
