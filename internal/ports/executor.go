package ports

import (
	"context"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// BrokerGateway submits real orders to the broker's order management system.
type BrokerGateway interface {
	// SubmitOrder places one order leg and returns the broker order ID.
	// A broker-side refusal comes back as *domain.OrderRejectedError with
	// the broker's message (and parsed margin figures when present);
	// transport failures and ack timeouts are plain errors. An ack only
	// means the order entered the broker's book, not that it filled.
	SubmitOrder(ctx context.Context, intent domain.OrderIntent) (string, error)
}

// AccountProvider reads account-level figures from the broker.
type AccountProvider interface {
	// AvailableMargin returns the equity margin currently available for
	// new positions, in account currency.
	AvailableMargin(ctx context.Context) (float64, error)
}
