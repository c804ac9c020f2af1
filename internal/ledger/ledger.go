// Package ledger records moderation sanctions and owns the active-state
// lifecycle of time-bounded ones.
package ledger

import (
	"context"
	"fmt"
	"iter"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/kratos/internal/db"
	kerrors "github.com/iamwavecut/kratos/internal/errors"
	"github.com/iamwavecut/kratos/internal/observability"
)

// Store is the subset of the sanction store the ledger depends on.
type Store interface {
	CreateMute(ctx context.Context, mute *db.Mute) (*db.Mute, error)
	GetMute(ctx context.Context, key int64) (*db.Mute, error)
	QueryActiveMutes(ctx context.Context, predicate func(*db.Mute) bool) (iter.Seq[*db.Mute], error)
	UpdateMute(ctx context.Context, key int64, mutate func(*db.Mute) bool) (*db.Mute, error)
	ListMutes(ctx context.Context, guildID, subjectID db.Snowflake) ([]*db.Mute, error)

	CreateTemporaryBan(ctx context.Context, ban *db.TemporaryBan) (*db.TemporaryBan, error)
	GetTemporaryBan(ctx context.Context, key int64) (*db.TemporaryBan, error)
	QueryActiveTemporaryBans(ctx context.Context, predicate func(*db.TemporaryBan) bool) (iter.Seq[*db.TemporaryBan], error)
	UpdateTemporaryBan(ctx context.Context, key int64, mutate func(*db.TemporaryBan) bool) (*db.TemporaryBan, error)
	ListTemporaryBans(ctx context.Context, guildID, subjectID db.Snowflake) ([]*db.TemporaryBan, error)

	CreatePermanentBan(ctx context.Context, ban *db.PermanentBan) (*db.PermanentBan, error)
	GetPermanentBan(ctx context.Context, key int64) (*db.PermanentBan, error)
	ListPermanentBans(ctx context.Context, guildID, subjectID db.Snowflake) ([]*db.PermanentBan, error)

	CreateSoftBan(ctx context.Context, ban *db.SoftBan) (*db.SoftBan, error)
	GetSoftBan(ctx context.Context, key int64) (*db.SoftBan, error)
	ListSoftBans(ctx context.Context, guildID, subjectID db.Snowflake) ([]*db.SoftBan, error)
}

// Subject identifies a sanctioned member within a guild.
type Subject struct {
	GuildID     db.Snowflake
	SubjectID   db.Snowflake
	SubjectName string
	ModeratorID db.Snowflake
}

// History is every sanction recorded for one member of a guild.
type History struct {
	Mutes         []*db.Mute
	TemporaryBans []*db.TemporaryBan
	PermanentBans []*db.PermanentBan
	SoftBans      []*db.SoftBan
}

type Ledger struct {
	store  Store
	logger *log.Entry
}

// New returns a ledger over store. A nil store makes every operation fail
// with ErrStorageUnavailable.
func New(store Store) *Ledger {
	return &Ledger{
		store:  store,
		logger: log.WithField("service", "ledger"),
	}
}

func (l *Ledger) ready() error {
	if l == nil || l.store == nil {
		return fmt.Errorf("ledger store not initialized: %w", kerrors.ErrStorageUnavailable)
	}
	return nil
}

func (s Subject) action(issuedAt db.Timestamp, reason string) db.ModeratorAction {
	return db.ModeratorAction{
		GuildID:     s.GuildID,
		SubjectID:   s.SubjectID,
		ModeratorID: s.ModeratorID,
		IssuedAt:    issuedAt,
		Reason:      reason,
	}
}

func (l *Ledger) AddMute(ctx context.Context, subject Subject, issuedAt, unmuteAt db.Timestamp, reason string) (*db.Mute, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	mute, err := l.store.CreateMute(ctx, &db.Mute{
		ModeratorAction: subject.action(issuedAt, reason),
		Active:          true,
		UnmuteAt:        unmuteAt,
	})
	if err != nil {
		return nil, fmt.Errorf("add mute: %w", err)
	}
	l.recorded(db.KindMute, mute.ModeratorAction)
	return mute, nil
}

func (l *Ledger) AddTemporaryBan(ctx context.Context, subject Subject, issuedAt, unbanAt db.Timestamp, reason string) (*db.TemporaryBan, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	ban, err := l.store.CreateTemporaryBan(ctx, &db.TemporaryBan{
		ModeratorAction: subject.action(issuedAt, reason),
		SubjectName:     subject.SubjectName,
		Active:          true,
		UnbanAt:         unbanAt,
	})
	if err != nil {
		return nil, fmt.Errorf("add temporary ban: %w", err)
	}
	l.recorded(db.KindTemporaryBan, ban.ModeratorAction)
	return ban, nil
}

func (l *Ledger) AddPermanentBan(ctx context.Context, subject Subject, issuedAt db.Timestamp, reason string) (*db.PermanentBan, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	ban, err := l.store.CreatePermanentBan(ctx, &db.PermanentBan{
		ModeratorAction: subject.action(issuedAt, reason),
		SubjectName:     subject.SubjectName,
	})
	if err != nil {
		return nil, fmt.Errorf("add permanent ban: %w", err)
	}
	l.recorded(db.KindPermanentBan, ban.ModeratorAction)
	return ban, nil
}

func (l *Ledger) AddSoftBan(ctx context.Context, subject Subject, issuedAt db.Timestamp, reason string) (*db.SoftBan, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	ban, err := l.store.CreateSoftBan(ctx, &db.SoftBan{
		ModeratorAction: subject.action(issuedAt, reason),
		SubjectName:     subject.SubjectName,
	})
	if err != nil {
		return nil, fmt.Errorf("add soft ban: %w", err)
	}
	l.recorded(db.KindSoftBan, ban.ModeratorAction)
	return ban, nil
}

func (l *Ledger) recorded(kind db.Kind, action db.ModeratorAction) {
	observability.RecordSanctionCreated(string(kind))
	l.logger.WithFields(log.Fields{
		"kind":       kind,
		"key":        action.Key,
		"guild_id":   action.GuildID,
		"subject_id": action.SubjectID,
	}).Debug("sanction recorded")
}
