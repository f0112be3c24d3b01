package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/aradsms/sms_bridge/internal/sms_bridge_service/domain"
)

// NumberReconciler keeps the inbound callback of every pool number pointed at
// the SMS webhook.
type NumberReconciler struct {
	inventory   domain.NumberInventory
	pool        map[string]struct{}
	callbackURL string
	logger      *slog.Logger
}

// NewNumberReconciler creates a NumberReconciler for the given pool.
func NewNumberReconciler(inventory domain.NumberInventory, pool []string, callbackURL string, logger *slog.Logger) *NumberReconciler {
	set := make(map[string]struct{}, len(pool))
	for _, n := range pool {
		set[n] = struct{}{}
	}
	return &NumberReconciler{
		inventory:   inventory,
		pool:        set,
		callbackURL: callbackURL,
		logger:      logger.With("component", "number_reconciler"),
	}
}

// Reconcile updates every pool number whose callback differs from ours and
// returns how many were updated. Numbers outside the pool are left alone.
func (r *NumberReconciler) Reconcile(ctx context.Context) (int, error) {
	numbers, err := r.inventory.ListNumbers(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing gateway numbers: %w", err)
	}

	var (
		updated int
		errs    []error
	)
	for _, n := range numbers {
		if _, ok := r.pool[n.MSISDN]; !ok {
			continue
		}
		if n.CallbackURL == r.callbackURL {
			continue
		}
		if err := r.inventory.UpdateCallback(ctx, n, r.callbackURL); err != nil {
			r.logger.ErrorContext(ctx, "Failed to update number callback", "number", n.MSISDN, "error", err)
			errs = append(errs, fmt.Errorf("number %s: %w", n.MSISDN, err))
			continue
		}
		updated++
		numberCallbacksUpdatedCounter.Inc()
		r.logger.InfoContext(ctx, "Number callback updated", "number", n.MSISDN, "callback_url", r.callbackURL)
	}
	return updated, errors.Join(errs...)
}

// Run reconciles on schedule (standard five-field cron spec or descriptor such
// as "@hourly") until ctx is cancelled. An empty schedule disables it.
func (r *NumberReconciler) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		<-ctx.Done()
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := r.Reconcile(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Scheduled number reconciliation failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	c.Start()
	r.logger.InfoContext(ctx, "Number reconciliation scheduled", "schedule", schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
