package underwriter

import (
	"encoding/json"
	"fmt"
)

// notification is the SNS wrapper around a body delivered through a topic subscription.
type notification struct {
	Type    string  `json:"Type"`
	Message *string `json:"Message"`
}

// Unwrap returns the validation message carried by raw, stripping an SNS notification wrapper.
func Unwrap(raw []byte) ([]byte, error) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToParseEnvelope, err)
	}
	if n.Type == "Notification" && n.Message != nil {
		return []byte(*n.Message), nil
	}
	return raw, nil
}

// MessageSchema is the inbound validation message contract.
var MessageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "JobId": { "type": ["string", "null"] },
    "uuid": { "type": "string", "minLength": 1 },
    "agregador": { "type": "string" },
    "document_id": { "type": "string", "minLength": 1 },
    "document_type": { "type": "string", "minLength": 1 },
    "document_label": { "type": ["string", "null"] },
    "cartao_proposta": { "type": ["object", "null"] },
    "document_information": { "type": ["object", "null"] },
    "message_type": { "enum": ["standard", "signature", "fraud_metadata"] },
    "tentativa": { "type": "integer", "minimum": 1 },
    "end_retry": { "type": "boolean" },
    "flag_large_file": { "type": "boolean" },
    "file_name": { "type": "string" }
  },
  "required": ["uuid", "document_id", "document_type"]
}`
