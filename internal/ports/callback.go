package ports

import (
	"context"

	"golang-sms-gateway/internal/domain"
)

// DeliveryReporter posts a delivery outcome back to the coordinator.
type DeliveryReporter interface {
	Report(ctx context.Context, r domain.DeliveryReport) error
}
