package application

import (
	"context"
	"strings"

	"pothole-core/notification/domain"

	"github.com/pkg/errors"
)

// PreferenceResolver lê preferências aplicando o default opt-out.
//
// Resolve nunca grava o default: registro só nasce via Upsert.
type PreferenceResolver struct {
	Store domain.Store
}

func (r PreferenceResolver) Resolve(ctx context.Context, userID string) (domain.Preference, error) {
	stored, err := r.Store.GetPreference(ctx, userID)
	if err != nil {
		return domain.Preference{}, errors.WithMessagef(err, "get preference for %s", userID)
	}
	return domain.ResolvePreference(userID, stored), nil
}

func (r PreferenceResolver) Upsert(ctx context.Context, userID string, upd domain.PreferenceUpdate) (domain.Preference, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Preference{}, errors.WithMessage(domain.ErrInvalidInput, "userId is required")
	}
	p, err := r.Store.UpsertPreference(ctx, userID, upd)
	if err != nil {
		return domain.Preference{}, errors.WithMessagef(err, "upsert preference for %s", userID)
	}
	return p, nil
}
