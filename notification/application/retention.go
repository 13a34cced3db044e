package application

import (
	"context"
	"time"

	"pothole-core/notification/domain"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Retention apaga notificações lidas mais velhas que MaxAge.
// MaxAge <= 0 desliga (Run vira no-op).
type Retention struct {
	Pruner domain.Pruner
	MaxAge time.Duration
	Now    func() time.Time
	Log    zerolog.Logger
}

func (r Retention) Run(ctx context.Context) (int64, error) {
	if r.Pruner == nil || r.MaxAge <= 0 {
		return 0, nil
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	cutoff := now().UTC().Add(-r.MaxAge)
	removed, err := r.Pruner.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.WithMessage(err, "retention")
	}
	r.Log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("read notifications pruned")
	return removed, nil
}
