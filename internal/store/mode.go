package store

import "context"

// KeyMode is where the runtime delivery mode lives. When unset, callers fall
// back to the static configuration, so flipping the key is the only state an
// operator mutates at runtime.
const KeyMode = "config:mode"

// GetMode returns the runtime delivery mode from s, or fallback when none is
// set.
func GetMode(ctx context.Context, s Store, fallback string) (string, error) {
	mode, err := s.Get(ctx, KeyMode)
	if err == ErrNotFound {
		return fallback, nil
	}
	if err != nil {
		return "", err
	}
	return mode, nil
}

// SetMode persists the runtime delivery mode. The key never expires.
func SetMode(ctx context.Context, s Store, mode string) error {
	return s.SetWithTTL(ctx, KeyMode, mode, 0)
}
