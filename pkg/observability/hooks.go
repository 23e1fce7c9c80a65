package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/docket/pkg/domain"
)

// LoggingHooks logs every dispatch and mutation at Debug, and failures at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "Action failed", "type", e.ActionType, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "Action dispatched", "type", e.ActionType, "handled", e.Handled, "duration", e.Duration)
		},
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "State change failed", "store", e.StoreKey, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "State changed", "store", e.StoreKey, "duration", e.Duration)
		},
	}
}

// MultiHooks calls every non-nil hook of each set, in order.
func MultiHooks(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var dispatch []func(context.Context, *domain.DispatchEvent)
	var mutation []func(context.Context, *domain.MutationEvent)
	for _, s := range sets {
		if s.OnDispatch != nil {
			dispatch = append(dispatch, s.OnDispatch)
		}
		if s.OnMutation != nil {
			mutation = append(mutation, s.OnMutation)
		}
	}

	var out domain.LifecycleHooks
	if len(dispatch) > 0 {
		out.OnDispatch = func(ctx context.Context, e *domain.DispatchEvent) {
			for _, fn := range dispatch {
				fn(ctx, e)
			}
		}
	}
	if len(mutation) > 0 {
		out.OnMutation = func(ctx context.Context, e *domain.MutationEvent) {
			for _, fn := range mutation {
				fn(ctx, e)
			}
		}
	}
	return out
}
