// Package kv provides the persistent key-value stores backing the notes collection.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const maxKeyLength = 190

// ErrInvalidKey indicates that a key is empty or exceeds storage bounds.
var ErrInvalidKey = errors.New("kv: invalid key")

// Store reads and writes string values under string keys.
// Get reports found=false without an error when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidKey, maxKeyLength)
	}
	return nil
}
