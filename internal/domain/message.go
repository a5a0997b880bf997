package domain

import "time"

// InboundEvent is a single message as reported by the transport, before filtering.
type InboundEvent struct {
	ID              string    `json:"id,omitempty"`
	SenderID        string    `json:"senderId"`
	SenderName      string    `json:"senderName,omitempty"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	IsDirectMessage bool      `json:"isDirectMessage"`
	IsFromBot       bool      `json:"isFromBot"`
}

// RelevantMessage is an inbound event that passed the peer filter.
type RelevantMessage struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
