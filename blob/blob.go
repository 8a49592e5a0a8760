// Package blob loads oversized validation messages parked in object storage.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/hatsunemiku3939/underwriter/types"
)

var (
	// ErrObjectNotFound is returned when the key does not exist in the bucket.
	ErrObjectNotFound = errors.New("object not found")
	// ErrMalformedObject is returned when a parked object does not hold a validation message.
	ErrMalformedObject = errors.New("malformed object")
)

// Fetcher reads whole objects.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Key is the object key of a parked message.
func Key(folder, fileName string) string {
	if folder == "" {
		return fileName
	}
	return path.Join(folder, fileName)
}

// Resolve returns the full message a pointer refers to. Retry bookkeeping comes from the
// pointer, the document and its records from the parked copy.
func Resolve(ctx context.Context, f Fetcher, folder string, ptr *types.Message) (*types.Message, error) {
	if !ptr.LargeFile {
		return ptr, nil
	}
	if ptr.FileName == "" {
		return nil, fmt.Errorf("large message %s has no file_name", ptr.DocumentID)
	}
	raw, err := f.Fetch(ctx, Key(folder, ptr.FileName))
	if err != nil {
		return nil, err
	}
	msg, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parked message %s: %w: %w", ptr.FileName, ErrMalformedObject, err)
	}
	msg.Attempt = ptr.Attempt
	msg.EndRetry = ptr.EndRetry
	msg.LargeFile = true
	msg.FileName = ptr.FileName
	if msg.MessageType == "" {
		msg.MessageType = ptr.MessageType
	}
	return msg, nil
}

// decode accepts the message object itself or a JSON string holding it, which is how
// producers that serialize twice park their messages.
func decode(raw []byte) (*types.Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		raw = []byte(inner)
	}
	return types.DecodeMessage(raw)
}
