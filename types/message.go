package types

import (
	"encoding/json"
	"fmt"
)

// Message is the inbound validation request as produced by the extraction pipeline.
type Message struct {
	JobID         string      `json:"JobId,omitempty"`
	OwnerID       string      `json:"uuid"`
	AggregatorID  string      `json:"agregador"`
	DocumentID    string      `json:"document_id"`
	DocumentType  string      `json:"document_type"`
	DocumentLabel string      `json:"document_label,omitempty"`
	Reference     Record      `json:"cartao_proposta,omitempty"`
	Extracted     Record      `json:"document_information,omitempty"`
	MessageType   MessageType `json:"message_type,omitempty"`
	Attempt       int         `json:"tentativa,omitempty"`
	EndRetry      bool        `json:"end_retry,omitempty"`
	LargeFile     bool        `json:"flag_large_file,omitempty"`
	FileName      string      `json:"file_name,omitempty"`
}

// DecodeMessage parses a raw message body.
func DecodeMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &msg, nil
}

// CurrentAttempt returns the attempt number of this pass. A message without tentativa is on attempt 1.
func (m *Message) CurrentAttempt() int {
	if m.Attempt <= 0 {
		return 1
	}
	return m.Attempt
}

// Identity returns the document identity carried by the message.
func (m *Message) Identity() Identity {
	return Identity{
		OwnerID:       m.OwnerID,
		AggregatorID:  m.AggregatorID,
		DocumentID:    m.DocumentID,
		DocumentType:  m.DocumentType,
		DocumentLabel: m.DocumentLabel,
	}
}

// Pointer returns the blob-pointer form of a large message: identity and retry
// bookkeeping only, the records stay in object storage.
func (m *Message) Pointer() *Message {
	return &Message{
		JobID:         m.JobID,
		OwnerID:       m.OwnerID,
		AggregatorID:  m.AggregatorID,
		DocumentID:    m.DocumentID,
		DocumentType:  m.DocumentType,
		DocumentLabel: m.DocumentLabel,
		MessageType:   m.MessageType,
		Attempt:       m.Attempt,
		EndRetry:      m.EndRetry,
		LargeFile:     true,
		FileName:      m.FileName,
	}
}

// Outcome is published downstream once a standard or signature run is terminal.
type Outcome struct {
	JobID        string    `json:"job_id"`
	DocumentType string    `json:"document_type"`
	DocumentID   string    `json:"document_id"`
	Reference    Record    `json:"cartao_proposta"`
	Results      ResultSet `json:"dados_regras_subscricao"`
}
