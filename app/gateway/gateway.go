package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/shopspring/decimal"

	"github.com/sadmint001/final-ryoko-tours-kenya-sub001/app/entity"
)

var (
	// ErrAuth is a credential/configuration problem; retrying without operator
	// intervention will not help.
	ErrAuth = errors.New("gateway authentication failed")
	// ErrSubmission is a per-request failure; the caller may retry with a
	// fresh request.
	ErrSubmission = errors.New("gateway submission failed")
	// ErrTimeout means the true outcome is unknown; the provider may have
	// accepted the order despite the client-side timeout.
	ErrTimeout = errors.New("gateway request timed out")
	// ErrDeclined is a provider-reported business rejection (insufficient
	// funds, invalid account), distinct from transport failures.
	ErrDeclined = errors.New("payment declined by provider")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Order carries one charge request to a provider. MerchantReference is the
// booking id; it is the correlation key for everything that comes back later.
type Order struct {
	MerchantReference string
	Amount            decimal.Decimal
	Currency          string
	Description       string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	CallbackURL       string
}

type SubmitResult struct {
	TrackingID        string
	RedirectURL       string
	ProviderRequestID string
}

type StatusResult struct {
	Status         Status
	ProviderStatus string
	Amount         decimal.Decimal
	PaymentMethod  string
	RawPayload     string
}

// Client is the per-provider adapter contract. Tokens returned by
// Authenticate are short-lived and never persisted.
type Client interface {
	Method() entity.PaymentMethod

	// RequiresServerVerification reports whether this provider's inbound
	// notifications can be spoofed or replayed, in which case the reconciler
	// must call VerifyStatus before trusting any result code.
	RequiresServerVerification() bool

	Authenticate(ctx context.Context) (string, error)
	Submit(ctx context.Context, token string, order *Order) (*SubmitResult, error)
	VerifyStatus(ctx context.Context, token, trackingID string) (*StatusResult, error)
}

// wrapTransportErr classifies a transport-level failure so callers can tell a
// timeout (outcome unknown) from a plain submission failure.
func wrapTransportErr(sentinel, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
