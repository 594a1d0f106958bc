// Package session persists the authenticated state and device identity
// between CLI invocations.
package session

import (
	"context"
	"fmt"
	"strings"
)

// Keys the manager stores documents under.
const (
	KeyAuth   = "auth.json"
	KeyDevice = "device.json"
)

// Store persists JSON documents by key. Load reports found == false with a
// nil error when the key has never been saved.
type Store interface {
	Load(ctx context.Context, key string, dst any) (found bool, err error)
	Save(ctx context.Context, key string, value any) error
}

func validateKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid session key %q", key)
	}
	return nil
}
