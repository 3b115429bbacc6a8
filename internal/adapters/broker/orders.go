package broker

// orders.go — order placement and account margin.
//
// SubmitOrder is deliberately single-shot: a POST the OMS may already have
// booked must never be resubmitted by the transport layer, that is how legs
// get double-placed. Classifying the outcome into a sequence state belongs
// to the executor; this file only translates the broker's answers.

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

const (
	ordersPath  = "/orders/regular"
	marginsPath = "/user/margins"

	orderValidity = "DAY"
	orderTag      = "kitebot"
)

// marginFigures matches the RMS rejection message, e.g. "Insufficient funds.
// Required margin is 190238.93 but available margin is 9373.65."
var marginFigures = regexp.MustCompile(`(?i)required margin is ([0-9.]+).*?available margin is ([0-9.]+)`)

// SubmitOrder implements ports.BrokerGateway. It places one leg and returns
// the broker order ID. An OMS refusal comes back as
// *domain.OrderRejectedError with the broker's message and any margin
// figures it carried; transport trouble stays a plain error.
func (c *Client) SubmitOrder(ctx context.Context, intent domain.OrderIntent) (string, error) {
	if err := intent.Validate(); err != nil {
		return "", fmt.Errorf("broker.SubmitOrder: %w", err)
	}

	form := url.Values{
		"exchange":         {intent.Venue},
		"tradingsymbol":    {intent.Symbol},
		"transaction_type": {string(intent.Side)},
		"quantity":         {strconv.Itoa(intent.Quantity)},
		"product":          {string(intent.Product)},
		"order_type":       {string(intent.OrderType)},
		"validity":         {orderValidity},
		"tag":              {orderTag},
	}
	if intent.OrderType == domain.OrderTypeLimit {
		form.Set("price", strconv.FormatFloat(intent.Price, 'f', 2, 64))
	}

	var ack orderAckDTO
	if err := c.postFormOnce(ctx, c.orderLimiter, ordersPath, form, &ack); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Rejection() {
			return "", &domain.OrderRejectedError{
				Message:   apiErr.Message,
				Shortfall: parseShortfall(apiErr.Message),
			}
		}
		return "", fmt.Errorf("broker.SubmitOrder: %s %s on %s: %w", intent.Side, intent.Symbol, intent.Venue, err)
	}
	if ack.OrderID == "" {
		return "", fmt.Errorf("broker.SubmitOrder: %s %s on %s: ack without order id", intent.Side, intent.Symbol, intent.Venue)
	}
	return ack.OrderID, nil
}

// AvailableMargin implements ports.AccountProvider.
func (c *Client) AvailableMargin(ctx context.Context) (float64, error) {
	var m marginsDTO
	if err := c.get(ctx, c.dataLimiter, marginsPath, nil, &m); err != nil {
		return 0, fmt.Errorf("broker.AvailableMargin: %w", err)
	}
	margin := m.Equity.Available.Cash
	if margin == 0 {
		// some account profiles report the usable figure only under net
		margin = m.Equity.Net
	}
	return margin, nil
}

// parseShortfall extracts the required/available figures from an RMS
// rejection message. Returns nil when the message carries no numbers.
func parseShortfall(message string) *domain.MarginShortfall {
	match := marginFigures.FindStringSubmatch(message)
	if match == nil {
		return nil
	}
	required, err1 := strconv.ParseFloat(match[1], 64)
	available, err2 := strconv.ParseFloat(match[2], 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &domain.MarginShortfall{Required: required, Available: available}
}
