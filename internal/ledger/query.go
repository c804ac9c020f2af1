package ledger

import (
	"context"
	"fmt"
	"iter"

	"github.com/iamwavecut/kratos/internal/db"
)

// FindExpiredActiveMutes returns the active mutes whose unmute time is
// strictly before now.
func (l *Ledger) FindExpiredActiveMutes(ctx context.Context, now db.Timestamp) (iter.Seq[*db.Mute], error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	seq, err := l.store.QueryActiveMutes(ctx, db.MuteExpiredAt(now))
	if err != nil {
		return nil, fmt.Errorf("find expired mutes: %w", err)
	}
	return seq, nil
}

// FindExpiredActiveTemporaryBans returns the active temporary bans whose
// unban time is strictly before now.
func (l *Ledger) FindExpiredActiveTemporaryBans(ctx context.Context, now db.Timestamp) (iter.Seq[*db.TemporaryBan], error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	seq, err := l.store.QueryActiveTemporaryBans(ctx, db.TemporaryBanExpiredAt(now))
	if err != nil {
		return nil, fmt.Errorf("find expired temporary bans: %w", err)
	}
	return seq, nil
}

func (l *Ledger) GetMute(ctx context.Context, key int64) (*db.Mute, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.store.GetMute(ctx, key)
}

func (l *Ledger) GetTemporaryBan(ctx context.Context, key int64) (*db.TemporaryBan, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.store.GetTemporaryBan(ctx, key)
}

func (l *Ledger) GetPermanentBan(ctx context.Context, key int64) (*db.PermanentBan, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.store.GetPermanentBan(ctx, key)
}

func (l *Ledger) GetSoftBan(ctx context.Context, key int64) (*db.SoftBan, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.store.GetSoftBan(ctx, key)
}

// History collects every sanction recorded against subjectID in guildID.
func (l *Ledger) History(ctx context.Context, guildID, subjectID db.Snowflake) (*History, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}

	var (
		h   History
		err error
	)
	if h.Mutes, err = l.store.ListMutes(ctx, guildID, subjectID); err != nil {
		return nil, fmt.Errorf("list mutes: %w", err)
	}
	if h.TemporaryBans, err = l.store.ListTemporaryBans(ctx, guildID, subjectID); err != nil {
		return nil, fmt.Errorf("list temporary bans: %w", err)
	}
	if h.PermanentBans, err = l.store.ListPermanentBans(ctx, guildID, subjectID); err != nil {
		return nil, fmt.Errorf("list permanent bans: %w", err)
	}
	if h.SoftBans, err = l.store.ListSoftBans(ctx, guildID, subjectID); err != nil {
		return nil, fmt.Errorf("list soft bans: %w", err)
	}
	return &h, nil
}
