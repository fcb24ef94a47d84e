package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/anupamdas/zevar-backend/internal/orders"
	"github.com/anupamdas/zevar-backend/pkg/db/models"
	"github.com/anupamdas/zevar-backend/pkg/enums"
	"github.com/anupamdas/zevar-backend/pkg/logger"
	"github.com/anupamdas/zevar-backend/pkg/outbox"
	"github.com/anupamdas/zevar-backend/pkg/outbox/payloads"
)

const expireBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stalePendingReader interface {
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type transactionalRepoFactory func(tx *gorm.DB) orders.Repository

func defaultTransactionalRepo(tx *gorm.DB) orders.Repository {
	return orders.NewRepository(tx)
}

// OrderTTLJobParams configure the pending order expiry job.
type OrderTTLJobParams struct {
	Logger                   *logger.Logger
	DB                       txRunner
	PendingReader            stalePendingReader
	Outbox                   outboxEmitter
	TTL                      time.Duration
	TransactionalRepoFactory transactionalRepoFactory
}

// NewOrderTTLJob builds the cron job that cancels gateway orders left unpaid
// past the configured TTL.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.PendingReader == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}
	repoFactory := params.TransactionalRepoFactory
	if repoFactory == nil {
		repoFactory = defaultTransactionalRepo
	}
	return &orderTTLJob{
		logg:          params.Logger,
		db:            params.DB,
		pendingReader: params.PendingReader,
		outbox:        params.Outbox,
		ttl:           params.TTL,
		repoFactory:   repoFactory,
		now:           time.Now,
	}, nil
}

type orderTTLJob struct {
	logg          *logger.Logger
	db            txRunner
	pendingReader stalePendingReader
	outbox        outboxEmitter
	ttl           time.Duration
	repoFactory   transactionalRepoFactory
	now           func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.pendingReader.FindStalePending(ctx, cutoff, expireBatchSize)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	var errs []error
	count := 0
	for _, order := range stale {
		if err := j.expireOrder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		count++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count, "cutoff": cutoff})
	j.logg.Info(logCtx, "order expiration loop complete")
	return multierr.Combine(errs...)
}

// expireOrder re-reads the order inside its own transaction so a payment that
// raced in since the sweep query leaves the order untouched.
func (j *orderTTLJob) expireOrder(ctx context.Context, order models.Order) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if current.Status != enums.OrderStatusPending || current.PaymentStatus != enums.PaymentStatusPending {
			return nil
		}

		now := j.now().UTC()
		updates := map[string]any{
			"status":           enums.OrderStatusCancelled,
			"payment_status":   enums.PaymentStatusFailed,
			"payment_event_at": now,
		}
		if err := repo.UpdatePayment(ctx, order.ID, updates); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderExpiredEvent{
				OrderID:   order.ID,
				UserID:    order.UserID,
				ExpiredAt: now,
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
}
