package payment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solusipay/payment-aggregator/internal"
	"github.com/solusipay/payment-aggregator/internal/core/datamodel/payment"
)

// allowedTransitions is the legal status transition table. Statuses absent
// from the map are terminal.
var allowedTransitions = map[payment.Status][]payment.Status{
	payment.StatusPending: {
		payment.StatusProcessing,
		payment.StatusCompleted,
		payment.StatusFailed,
		payment.StatusCancelled,
		payment.StatusExpired,
	},
	payment.StatusProcessing: {
		payment.StatusCompleted,
		payment.StatusFailed,
		payment.StatusCancelled,
	},
	payment.StatusCompleted: {
		payment.StatusRefunded,
		payment.StatusPartiallyRefunded,
		payment.StatusDisputed,
	},
	payment.StatusPartiallyRefunded: {
		payment.StatusRefunded,
	},
}

func CanTransition(from, to payment.Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func IsTerminal(status payment.Status) bool {
	targets, ok := allowedTransitions[status]
	return !ok || len(targets) == 0
}

func NewInvalidTransitionError(from, to payment.Status) *internal.AppError {
	return internal.NewConflictError(
		fmt.Sprintf("cannot transition payment from %s to %s", from, to),
		internal.ErrCodeInvalidTransition,
	)
}

// TransitionInfo carries the gateway-supplied fields applied alongside a
// status change.
type TransitionInfo struct {
	ExternalID       string
	GatewayReference string
	GatewayFee       *decimal.Decimal
	FailureCode      string
	FailureReason    string
}

// ApplyTransition mutates p for a legal transition to target. On an illegal
// transition it returns the conflict error and leaves p untouched.
// Lifecycle timestamps are set exactly once, by the transition that first
// reaches the state; net amount is computed only on entering COMPLETED.
func ApplyTransition(p *payment.Payment, target payment.Status, info TransitionInfo, now time.Time) error {
	if !CanTransition(p.Status, target) {
		return NewInvalidTransitionError(p.Status, target)
	}

	p.Status = target
	p.UpdatedAt = now

	if info.ExternalID != "" {
		externalID := info.ExternalID
		p.ExternalID = &externalID
	}
	if info.GatewayReference != "" {
		gatewayRef := info.GatewayReference
		p.GatewayReference = &gatewayRef
	}
	if info.GatewayFee != nil {
		p.GatewayFee = *info.GatewayFee
	}

	switch target {
	case payment.StatusProcessing:
		if p.ProcessedAt == nil {
			processedAt := now
			p.ProcessedAt = &processedAt
		}
	case payment.StatusCompleted:
		if p.CompletedAt == nil {
			completedAt := now
			p.CompletedAt = &completedAt
		}
		p.NetAmount = p.Amount.Sub(p.GatewayFee).Sub(p.PlatformFee)
	case payment.StatusFailed, payment.StatusCancelled, payment.StatusExpired:
		if p.FailedAt == nil {
			failedAt := now
			p.FailedAt = &failedAt
		}
		if info.FailureCode != "" {
			failureCode := info.FailureCode
			p.FailureCode = &failureCode
		}
		if info.FailureReason != "" {
			failureReason := info.FailureReason
			p.FailureReason = &failureReason
		}
	}

	return nil
}

// GenerateReference builds the merchant-facing payment identifier,
// PAY_<unixSeconds>_<random8hex>. It is immutable after creation.
func GenerateReference() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to the timestamp alone rather than panic.
		return fmt.Sprintf("PAY_%d_%08x", time.Now().Unix(), time.Now().UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("PAY_%d_%s", time.Now().Unix(), hex.EncodeToString(buf))
}
