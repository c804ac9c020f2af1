package db

import (
	"context"
	"iter"
)

// Client is the sanction store. Each variant lives in its own collection.
type Client interface {
	Close() error

	CreateMute(ctx context.Context, mute *Mute) (*Mute, error)
	GetMute(ctx context.Context, key int64) (*Mute, error)
	QueryActiveMutes(ctx context.Context, predicate func(*Mute) bool) (iter.Seq[*Mute], error)
	UpdateMute(ctx context.Context, key int64, mutate func(*Mute) bool) (*Mute, error)
	ListMutes(ctx context.Context, guildID, subjectID Snowflake) ([]*Mute, error)

	CreateTemporaryBan(ctx context.Context, ban *TemporaryBan) (*TemporaryBan, error)
	GetTemporaryBan(ctx context.Context, key int64) (*TemporaryBan, error)
	QueryActiveTemporaryBans(ctx context.Context, predicate func(*TemporaryBan) bool) (iter.Seq[*TemporaryBan], error)
	UpdateTemporaryBan(ctx context.Context, key int64, mutate func(*TemporaryBan) bool) (*TemporaryBan, error)
	ListTemporaryBans(ctx context.Context, guildID, subjectID Snowflake) ([]*TemporaryBan, error)

	CreatePermanentBan(ctx context.Context, ban *PermanentBan) (*PermanentBan, error)
	GetPermanentBan(ctx context.Context, key int64) (*PermanentBan, error)
	ListPermanentBans(ctx context.Context, guildID, subjectID Snowflake) ([]*PermanentBan, error)

	CreateSoftBan(ctx context.Context, ban *SoftBan) (*SoftBan, error)
	GetSoftBan(ctx context.Context, key int64) (*SoftBan, error)
	ListSoftBans(ctx context.Context, guildID, subjectID Snowflake) ([]*SoftBan, error)
}
