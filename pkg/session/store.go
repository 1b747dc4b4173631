// Package session persists per-form state across requests. Every backend
// scopes state by session id and form key and offers a per-session critical
// section so concurrent submissions from one browser do not lose updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Store persists FormState values.
type Store interface {
	// Lock enters the critical section for sessionID. The returned function
	// releases it and is safe to call more than once.
	Lock(ctx context.Context, sessionID string) (func(), error)
	// Load returns the stored state or a fresh empty one.
	Load(ctx context.Context, sessionID, formKey string) (*FormState, error)
	Save(ctx context.Context, sessionID, formKey string, state *FormState) error
	Delete(ctx context.Context, sessionID, formKey string) error
}

var (
	// ErrSessionRequired is returned when an operation has no session id.
	ErrSessionRequired = errors.New("session: session id is required")
	// ErrLockTimeout is returned when the critical section could not be
	// entered before the context ended.
	ErrLockTimeout = errors.New("session: lock not acquired")
)

// DefaultTTL is how long idle form state is kept by the bundled stores.
const DefaultTTL = 24 * time.Hour

const lockRetryDelay = 10 * time.Millisecond

func stateKey(prefix, sessionID, formKey string) string {
	return prefix + sessionID + ":" + formKey
}

func validateIDs(sessionID, formKey string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionRequired
	}
	if strings.TrimSpace(formKey) == "" {
		return errors.New("session: form key is required")
	}
	return nil
}

// Marshal encodes state in the wire format used by the bundled stores.
func Marshal(state *FormState) ([]byte, error) {
	if state == nil {
		state = NewFormState()
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("session: encode state: %w", err)
	}
	return data, nil
}

// Unmarshal decodes state produced by Marshal.
func Unmarshal(data []byte) (*FormState, error) {
	state := &FormState{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, state); err != nil {
			return nil, fmt.Errorf("session: decode state: %w", err)
		}
	}
	state.ensure()
	return state, nil
}

func onceFunc(fn func()) func() {
	var done bool
	return func() {
		if done {
			return
		}
		done = true
		fn()
	}
}

func waitRetry(ctx context.Context) error {
	timer := time.NewTimer(lockRetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	case <-timer.C:
		return nil
	}
}
