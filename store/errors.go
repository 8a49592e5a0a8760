package store

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrSecret           = errors.New("secret")
)
