package ledger

import (
	"context"
	"fmt"

	"github.com/iamwavecut/kratos/internal/db"
	"github.com/iamwavecut/kratos/internal/observability"
)

// Source names who lifted a sanction, for metrics and logs.
type Source string

const (
	SourceReconciler Source = "reconciler"
	SourceManual     Source = "manual"
)

// DeactivateMute marks the mute inactive. It reports whether this call made
// the transition; an already inactive mute is left untouched and is not an
// error. A missing key fails with ErrNotFound.
func (l *Ledger) DeactivateMute(ctx context.Context, key int64, source Source) (bool, error) {
	if err := l.ready(); err != nil {
		return false, err
	}
	changed := false
	if _, err := l.store.UpdateMute(ctx, key, func(m *db.Mute) bool {
		changed = m.Active
		m.Active = false
		return changed
	}); err != nil {
		return false, fmt.Errorf("deactivate mute: %w", err)
	}
	l.deactivated(db.KindMute, key, source, changed)
	return changed, nil
}

// DeactivateTemporaryBan is DeactivateMute for temporary bans.
func (l *Ledger) DeactivateTemporaryBan(ctx context.Context, key int64, source Source) (bool, error) {
	if err := l.ready(); err != nil {
		return false, err
	}
	changed := false
	if _, err := l.store.UpdateTemporaryBan(ctx, key, func(b *db.TemporaryBan) bool {
		changed = b.Active
		b.Active = false
		return changed
	}); err != nil {
		return false, fmt.Errorf("deactivate temporary ban: %w", err)
	}
	l.deactivated(db.KindTemporaryBan, key, source, changed)
	return changed, nil
}

func (l *Ledger) deactivated(kind db.Kind, key int64, source Source, changed bool) {
	entry := l.logger.WithField("kind", kind).WithField("key", key).WithField("source", source)
	if !changed {
		entry.Debug("sanction already inactive")
		return
	}
	observability.RecordSanctionDeactivated(string(kind), string(source))
	entry.Info("sanction deactivated")
}
