package db

import (
	"database/sql/driver"
	"fmt"
)

type (
	// Snowflake is an unsigned platform identifier (guild, member, moderator).
	Snowflake uint64

	// Timestamp is a unix timestamp in seconds.
	Timestamp uint64

	Kind string
)

const (
	KindMute         Kind = "mute"
	KindTemporaryBan Kind = "temporary_ban"
	KindPermanentBan Kind = "permanent_ban"
	KindSoftBan      Kind = "soft_ban"
)

type (
	// ModeratorAction holds the fields shared by every sanction record.
	ModeratorAction struct {
		Key         int64     `db:"key"`
		GuildID     Snowflake `db:"guild_id"`
		SubjectID   Snowflake `db:"subject_id"`
		ModeratorID Snowflake `db:"moderator_id"`
		IssuedAt    Timestamp `db:"issued_at"`
		Reason      string    `db:"reason"`
	}

	Mute struct {
		ModeratorAction
		Active   bool      `db:"active"`
		UnmuteAt Timestamp `db:"unmute_at"`
	}

	TemporaryBan struct {
		ModeratorAction
		SubjectName string    `db:"subject_name"`
		Active      bool      `db:"active"`
		UnbanAt     Timestamp `db:"unban_at"`
	}

	PermanentBan struct {
		ModeratorAction
		SubjectName string `db:"subject_name"`
	}

	// SoftBan is a kick recorded as ban-then-unban. Audit only.
	SoftBan struct {
		ModeratorAction
		SubjectName string `db:"subject_name"`
	}
)

// Expired reports whether a time-bounded sanction is still active and
// strictly past its expiry at now.
func Expired(active bool, expiresAt, now Timestamp) bool {
	return active && now > expiresAt
}

// MuteExpiredAt is the expiry predicate for mutes.
func MuteExpiredAt(now Timestamp) func(*Mute) bool {
	return func(m *Mute) bool { return Expired(m.Active, m.UnmuteAt, now) }
}

// TemporaryBanExpiredAt is the expiry predicate for temporary bans.
func TemporaryBanExpiredAt(now Timestamp) func(*TemporaryBan) bool {
	return func(b *TemporaryBan) bool { return Expired(b.Active, b.UnbanAt, now) }
}

// SQLite integers are signed, so the full uint64 range is stored bit-cast.

func (s Snowflake) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *Snowflake) Scan(v interface{}) error {
	n, err := scanUint64(v)
	if err != nil {
		return err
	}
	*s = Snowflake(n)
	return nil
}

func (t Timestamp) Value() (driver.Value, error) {
	return int64(t), nil
}

func (t *Timestamp) Scan(v interface{}) error {
	n, err := scanUint64(v)
	if err != nil {
		return err
	}
	*t = Timestamp(n)
	return nil
}

func scanUint64(v interface{}) (uint64, error) {
	switch data := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return uint64(data), nil
	case uint64:
		return data, nil
	default:
		return 0, fmt.Errorf("cannot scan type %T into uint64", v)
	}
}
