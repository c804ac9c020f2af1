package sqlite

import (
	"context"
	"iter"

	"github.com/iamwavecut/kratos/internal/db"
)

const (
	temporaryBanColumns = `key, guild_id, subject_id, subject_name, moderator_id, issued_at, reason, active, unban_at`
	auditBanColumns     = `key, guild_id, subject_id, subject_name, moderator_id, issued_at, reason`
)

func (c *sqliteClient) CreateTemporaryBan(ctx context.Context, ban *db.TemporaryBan) (*db.TemporaryBan, error) {
	query := `
		INSERT INTO temporary_bans (guild_id, subject_id, subject_name, moderator_id, issued_at, reason, active, unban_at)
		VALUES (:guild_id, :subject_id, :subject_name, :moderator_id, :issued_at, :reason, :active, :unban_at)
	`
	key, err := insert(ctx, c, "create temporary ban", query, ban)
	if err != nil {
		return nil, err
	}
	stored := *ban
	stored.Key = key
	return &stored, nil
}

func (c *sqliteClient) GetTemporaryBan(ctx context.Context, key int64) (*db.TemporaryBan, error) {
	return get[db.TemporaryBan](ctx, c, "temporary_bans", `SELECT `+temporaryBanColumns+` FROM temporary_bans WHERE key = ?`, key)
}

func (c *sqliteClient) QueryActiveTemporaryBans(ctx context.Context, predicate func(*db.TemporaryBan) bool) (iter.Seq[*db.TemporaryBan], error) {
	return queryActive(ctx, c, "temporary_bans", `SELECT `+temporaryBanColumns+` FROM temporary_bans WHERE active = 1 ORDER BY key`, predicate)
}

func (c *sqliteClient) UpdateTemporaryBan(ctx context.Context, key int64, mutate func(*db.TemporaryBan) bool) (*db.TemporaryBan, error) {
	return update(ctx, c, "temporary_bans",
		`SELECT `+temporaryBanColumns+` FROM temporary_bans WHERE key = ?`,
		`UPDATE temporary_bans SET active = :active, unban_at = :unban_at, reason = :reason`,
		key, mutate,
	)
}

func (c *sqliteClient) ListTemporaryBans(ctx context.Context, guildID, subjectID db.Snowflake) ([]*db.TemporaryBan, error) {
	return list[db.TemporaryBan](ctx, c, "temporary_bans",
		`SELECT `+temporaryBanColumns+` FROM temporary_bans WHERE guild_id = ? AND subject_id = ? ORDER BY key`,
		guildID, subjectID,
	)
}

func (c *sqliteClient) CreatePermanentBan(ctx context.Context, ban *db.PermanentBan) (*db.PermanentBan, error) {
	query := `
		INSERT INTO permanent_bans (guild_id, subject_id, subject_name, moderator_id, issued_at, reason)
		VALUES (:guild_id, :subject_id, :subject_name, :moderator_id, :issued_at, :reason)
	`
	key, err := insert(ctx, c, "create permanent ban", query, ban)
	if err != nil {
		return nil, err
	}
	stored := *ban
	stored.Key = key
	return &stored, nil
}

func (c *sqliteClient) GetPermanentBan(ctx context.Context, key int64) (*db.PermanentBan, error) {
	return get[db.PermanentBan](ctx, c, "permanent_bans", `SELECT `+auditBanColumns+` FROM permanent_bans WHERE key = ?`, key)
}

func (c *sqliteClient) ListPermanentBans(ctx context.Context, guildID, subjectID db.Snowflake) ([]*db.PermanentBan, error) {
	return list[db.PermanentBan](ctx, c, "permanent_bans",
		`SELECT `+auditBanColumns+` FROM permanent_bans WHERE guild_id = ? AND subject_id = ? ORDER BY key`,
		guildID, subjectID,
	)
}

func (c *sqliteClient) CreateSoftBan(ctx context.Context, ban *db.SoftBan) (*db.SoftBan, error) {
	query := `
		INSERT INTO soft_bans (guild_id, subject_id, subject_name, moderator_id, issued_at, reason)
		VALUES (:guild_id, :subject_id, :subject_name, :moderator_id, :issued_at, :reason)
	`
	key, err := insert(ctx, c, "create soft ban", query, ban)
	if err != nil {
		return nil, err
	}
	stored := *ban
	stored.Key = key
	return &stored, nil
}

func (c *sqliteClient) GetSoftBan(ctx context.Context, key int64) (*db.SoftBan, error) {
	return get[db.SoftBan](ctx, c, "soft_bans", `SELECT `+auditBanColumns+` FROM soft_bans WHERE key = ?`, key)
}

func (c *sqliteClient) ListSoftBans(ctx context.Context, guildID, subjectID db.Snowflake) ([]*db.SoftBan, error) {
	return list[db.SoftBan](ctx, c, "soft_bans",
		`SELECT `+auditBanColumns+` FROM soft_bans WHERE guild_id = ? AND subject_id = ? ORDER BY key`,
		guildID, subjectID,
	)
}
