package dispatch

import (
	"context"

	"github.com/matthewshammond/MailBridge/internal/domain"
)

// Sender is a delivery backend with a single at-most-one-attempt send.
type Sender interface {
	Send(ctx context.Context, m *domain.ComposedMail) error
}

// Mirrorer is the optional secondary capability of backends that can file a
// copy of a sent message into the account's Sent folder. Only the
// direct-mailbox backend implements it.
type Mirrorer interface {
	Mirror(ctx context.Context, m *domain.ComposedMail) error
}
