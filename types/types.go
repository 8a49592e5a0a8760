package types

import (
	"context"
)

// HandlerKey is the unique identifier for a registered handler. Handlers are keyed by message type.
type HandlerKey string

// RoutingPolicy decides which handler should process an incoming message.
// Returning an empty HandlerKey means no handler selected.
type RoutingPolicy interface {
	Decide(ctx context.Context, msg *Message, availableHandlers []HandlerKey) HandlerKey
}

// MessageType selects which checklist of a document type applies.
type MessageType string

const (
	MessageStandard      MessageType = "standard"
	MessageSignature     MessageType = "signature"
	MessageFraudMetadata MessageType = "fraud_metadata"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageStandard, MessageSignature, MessageFraudMetadata:
		return true
	}
	return false
}

// Identity locates the document under validation.
type Identity struct {
	OwnerID       string
	AggregatorID  string
	DocumentID    string
	DocumentType  string
	DocumentLabel string
}

// Subject is the reference/extracted record pair validated by one invocation.
type Subject struct {
	Identity  Identity
	Kind      MessageType
	Reference Record
	Extracted Record
}

// NewSubject builds the subject carried by msg. Nil records are replaced by empty ones.
func NewSubject(msg *Message) *Subject {
	ref, ext := msg.Reference, msg.Extracted
	if ref == nil {
		ref = Record{}
	}
	if ext == nil {
		ext = Record{}
	}
	kind := msg.MessageType
	if kind == "" {
		kind = MessageStandard
	}
	return &Subject{
		Identity:  msg.Identity(),
		Kind:      kind,
		Reference: ref,
		Extracted: ext,
	}
}
