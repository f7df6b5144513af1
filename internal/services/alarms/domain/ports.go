package domain

import (
	"context"
	"time"
)

// ServicePort is the alarm CRUD contract exposed to transport and daemons
type ServicePort interface {
	Create(ctx context.Context, in CreateInput) (Alarm, error)
	Get(ctx context.Context, codeID string) (Alarm, error)
	List(ctx context.Context, in ListInput) ([]Alarm, int64, error)
	Count(ctx context.Context, in ListInput) (int64, error)
	Update(ctx context.Context, codeID string, in UpdateInput) (Alarm, error)
	Cancel(ctx context.Context, codeID string) error

	Description(ctx context.Context, codeID string) (CodeDescription, error)
}

// HealthPort reports scheduler liveness to the API health endpoint
type HealthPort interface {
	TickAge(ctx context.Context) (time.Duration, error)
	ScheduledCount(ctx context.Context) (int64, error)
}
