package payment

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/ecommercefs/storefront/api/internal/domain"
	"github.com/google/uuid"
)

const ProviderSandbox = "sandbox"

// Sandbox is a local gateway driven by the card token prefix:
// "approved…" approves, "pending…" leaves the payment in process,
// "unavailable…" simulates an outage and anything else is declined.
type Sandbox struct {
	calls atomic.Int64
}

func NewSandbox() *Sandbox {
	return &Sandbox{}
}

func (s *Sandbox) Authorize(ctx context.Context, req domain.AuthorizeRequest) (domain.GatewayResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.GatewayResult{}, domain.ErrGatewayUnavailable
	}
	s.calls.Add(1)

	token := strings.ToLower(req.Token)
	result := domain.GatewayResult{Provider: ProviderSandbox, ProviderReference: "sbx_" + uuid.NewString()}
	switch {
	case strings.HasPrefix(token, "unavailable"):
		return domain.GatewayResult{}, domain.ErrGatewayUnavailable
	case strings.HasPrefix(token, "approved"):
		result.Outcome, result.ProviderStatus = domain.PaymentApproved, "approved"
	case strings.HasPrefix(token, "pending"):
		result.Outcome, result.ProviderStatus = domain.PaymentPending, "in_process"
	default:
		result.Outcome, result.ProviderStatus = domain.PaymentDeclined, "rejected"
	}
	return result, nil
}

// Calls is how many authorizations reached the sandbox.
func (s *Sandbox) Calls() int64 {
	return s.calls.Load()
}
