package usecase

import (
	"context"
	"time"

	"marketchat/internal/domain/repository"
	"marketchat/internal/infrastructure/metrics"
	"marketchat/pkg/logger"
)

// UnreadReconciler recomputes unreadCount from message read flags. The counter is bumped on
// send and the flags are flipped on read by separate writes, so the two can drift.
type UnreadReconciler struct {
	conversationRepo repository.ConversationRepository
	publisher        EventPublisher
	lookback         time.Duration
	batchSize        int
	now              func() time.Time
}

func NewUnreadReconciler(conversationRepo repository.ConversationRepository, publisher EventPublisher, lookback time.Duration, batchSize int) *UnreadReconciler {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &UnreadReconciler{
		conversationRepo: conversationRepo,
		publisher:        publisherOrNoop(publisher),
		lookback:         lookback,
		batchSize:        batchSize,
		now:              time.Now,
	}
}

// RunOnce reconciles conversations active within the lookback window and returns how many
// needed a correction.
func (r *UnreadReconciler) RunOnce(ctx context.Context) (int, error) {
	conversations, err := r.conversationRepo.ListActiveSince(ctx, r.now().Add(-r.lookback), r.batchSize)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, c := range conversations {
		if ctx.Err() != nil {
			return fixed, ctx.Err()
		}

		counts, changed, err := r.conversationRepo.ReconcileUnread(ctx, c.ID)
		if err != nil {
			logger.Warn("Unread reconciliation failed for conversation %s: %v", c.ID, err)
			continue
		}
		if !changed {
			continue
		}

		fixed++
		metrics.UnreadReconciled.Inc()
		for userID, count := range counts {
			publishUnread(r.publisher, userID, c.ID, count)
		}
	}

	if fixed > 0 {
		logger.Info("Unread reconciliation corrected %d of %d conversations", fixed, len(conversations))
	}
	return fixed, nil
}

// Run adapts RunOnce to the scheduler's job signature.
func (r *UnreadReconciler) Run(ctx context.Context) error {
	_, err := r.RunOnce(ctx)
	return err
}
