package sqlite

import (
	"context"
	"iter"

	"github.com/iamwavecut/kratos/internal/db"
)

const muteColumns = `key, guild_id, subject_id, moderator_id, issued_at, reason, active, unmute_at`

func (c *sqliteClient) CreateMute(ctx context.Context, mute *db.Mute) (*db.Mute, error) {
	query := `
		INSERT INTO mutes (guild_id, subject_id, moderator_id, issued_at, reason, active, unmute_at)
		VALUES (:guild_id, :subject_id, :moderator_id, :issued_at, :reason, :active, :unmute_at)
	`
	key, err := insert(ctx, c, "create mute", query, mute)
	if err != nil {
		return nil, err
	}
	stored := *mute
	stored.Key = key
	return &stored, nil
}

func (c *sqliteClient) GetMute(ctx context.Context, key int64) (*db.Mute, error) {
	return get[db.Mute](ctx, c, "mutes", `SELECT `+muteColumns+` FROM mutes WHERE key = ?`, key)
}

func (c *sqliteClient) QueryActiveMutes(ctx context.Context, predicate func(*db.Mute) bool) (iter.Seq[*db.Mute], error) {
	return queryActive(ctx, c, "mutes", `SELECT `+muteColumns+` FROM mutes WHERE active = 1 ORDER BY key`, predicate)
}

func (c *sqliteClient) UpdateMute(ctx context.Context, key int64, mutate func(*db.Mute) bool) (*db.Mute, error) {
	return update(ctx, c, "mutes",
		`SELECT `+muteColumns+` FROM mutes WHERE key = ?`,
		`UPDATE mutes SET active = :active, unmute_at = :unmute_at, reason = :reason`,
		key, mutate,
	)
}

func (c *sqliteClient) ListMutes(ctx context.Context, guildID, subjectID db.Snowflake) ([]*db.Mute, error) {
	return list[db.Mute](ctx, c, "mutes",
		`SELECT `+muteColumns+` FROM mutes WHERE guild_id = ? AND subject_id = ? ORDER BY key`,
		guildID, subjectID,
	)
}
