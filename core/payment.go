package core

import "context"

type (
	ChargeRequest struct {
		Token         string `json:"token"`
		AmountInCents int    `json:"amountInCents"`
		Currency      string `json:"currency"`
	}

	ChargeResult struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}

	// PaymentGateway charges a card token once. Failures are *UpstreamError; nothing is retried.
	PaymentGateway interface {
		Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	}
)
