package dispatch

import (
	"context"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/store"
)

// ModeSource resolves the active delivery mode per dispatch: the runtime
// store value when an operator has flipped it, otherwise the static
// configuration.
type ModeSource struct {
	store    store.Store
	fallback string
}

func NewModeSource(s store.Store, fallback string) *ModeSource {
	return &ModeSource{store: s, fallback: fallback}
}

func (m *ModeSource) Current(ctx context.Context) string {
	mode, err := store.GetMode(ctx, m.store, m.fallback)
	if err != nil || !config.ValidMode(mode) {
		return m.fallback
	}
	return mode
}
