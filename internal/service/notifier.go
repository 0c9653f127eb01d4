package service

import (
	"context"

	"github.com/kirieshkistudios/park-backend/internal/domain"
)

// OccupancyNotifier receives every applied occupancy change. Implementations
// must not block the report path for long; failures are theirs to log.
type OccupancyNotifier interface {
	NotifyOccupancy(ctx context.Context, n domain.OccupancyNotification)
}

type MultiNotifier []OccupancyNotifier

func (m MultiNotifier) NotifyOccupancy(ctx context.Context, n domain.OccupancyNotification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.NotifyOccupancy(ctx, n)
		}
	}
}
