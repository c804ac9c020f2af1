package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/kratos/internal/db"
	kerrors "github.com/iamwavecut/kratos/internal/errors"
	"github.com/iamwavecut/kratos/internal/ledger"
)

// Punisher applies sanctions on the platform.
type Punisher interface {
	Enforcer
	Mute(ctx context.Context, guildID, subjectID db.Snowflake, until db.Timestamp) error
	Ban(ctx context.Context, guildID, subjectID db.Snowflake, until db.Timestamp) error
	Kick(ctx context.Context, guildID, subjectID db.Snowflake) error
}

type commandLedger interface {
	AddMute(ctx context.Context, subject ledger.Subject, issuedAt, unmuteAt db.Timestamp, reason string) (*db.Mute, error)
	AddTemporaryBan(ctx context.Context, subject ledger.Subject, issuedAt, unbanAt db.Timestamp, reason string) (*db.TemporaryBan, error)
	AddPermanentBan(ctx context.Context, subject ledger.Subject, issuedAt db.Timestamp, reason string) (*db.PermanentBan, error)
	AddSoftBan(ctx context.Context, subject ledger.Subject, issuedAt db.Timestamp, reason string) (*db.SoftBan, error)
	GetMute(ctx context.Context, key int64) (*db.Mute, error)
	GetTemporaryBan(ctx context.Context, key int64) (*db.TemporaryBan, error)
	DeactivateMute(ctx context.Context, key int64, source ledger.Source) (bool, error)
	DeactivateTemporaryBan(ctx context.Context, key int64, source ledger.Source) (bool, error)
	History(ctx context.Context, guildID, subjectID db.Snowflake) (*ledger.History, error)
}

type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultWarning
	ResultFail
)

// Result is the user-facing outcome of a moderation command.
type Result struct {
	Type    ResultType
	Message string
}

func (r Result) String() string {
	switch r.Type {
	case ResultSuccess:
		return ":ok: " + r.Message
	case ResultWarning:
		return ":warning: " + r.Message
	default:
		return ":x: " + r.Message
	}
}

func success(format string, args ...any) Result {
	return Result{Type: ResultSuccess, Message: fmt.Sprintf(format, args...)}
}

func warning(format string, args ...any) Result {
	return Result{Type: ResultWarning, Message: fmt.Sprintf(format, args...)}
}

// failure maps ledger and platform errors to a result.
func failure(action string, err error) Result {
	switch {
	case errors.Is(err, kerrors.ErrNotFound):
		return warning("%s: no such record", action)
	case errors.Is(err, kerrors.ErrStorageUnavailable):
		return Result{Type: ResultFail, Message: fmt.Sprintf("%s: sanction storage is unavailable (%v)", action, err)}
	default:
		return Result{Type: ResultFail, Message: fmt.Sprintf("%s: %v", action, err)}
	}
}

// Request describes a sanction issued by a moderator.
type Request struct {
	GuildID     db.Snowflake
	SubjectID   db.Snowflake
	SubjectName string
	ModeratorID db.Snowflake
	Reason      string
	// Duration applies to mutes and temporary bans.
	Duration time.Duration
}

func (r Request) subject() ledger.Subject {
	return ledger.Subject{
		GuildID:     r.GuildID,
		SubjectID:   r.SubjectID,
		SubjectName: r.SubjectName,
		ModeratorID: r.ModeratorID,
	}
}

// Commands is the ledger-facing side of the moderation commands: each
// command is applied on the platform first and recorded afterwards.
type Commands struct {
	ledger   commandLedger
	punisher Punisher
	now      func() time.Time
	logger   *log.Entry
}

func NewCommands(l commandLedger, punisher Punisher) *Commands {
	return &Commands{
		ledger:   l,
		punisher: punisher,
		now:      time.Now,
		logger:   log.WithField("service", "commands"),
	}
}

// WithClock replaces the wall clock used to stamp new sanctions.
func (c *Commands) WithClock(now func() time.Time) *Commands {
	c.now = now
	return c
}

func (c *Commands) window(d time.Duration) (issuedAt, expiresAt db.Timestamp) {
	now := c.now()
	return db.Timestamp(now.Unix()), db.Timestamp(now.Add(d).Unix())
}

func (c *Commands) Mute(ctx context.Context, req Request) Result {
	if req.Duration <= 0 {
		return warning("mute duration must be positive")
	}
	issuedAt, unmuteAt := c.window(req.Duration)
	if err := c.punisher.Mute(ctx, req.GuildID, req.SubjectID, unmuteAt); err != nil {
		return failure("mute", err)
	}
	mute, err := c.ledger.AddMute(ctx, req.subject(), issuedAt, unmuteAt, req.Reason)
	if err != nil {
		c.logger.WithError(err).WithField("subject_id", req.SubjectID).Error("muted on platform but not recorded")
		return failure("record mute", err)
	}
	return success("muted %d for %s (mute #%d)", req.SubjectID, req.Duration, mute.Key)
}

func (c *Commands) TempBan(ctx context.Context, req Request) Result {
	if req.Duration <= 0 {
		return warning("ban duration must be positive")
	}
	issuedAt, unbanAt := c.window(req.Duration)
	if err := c.punisher.Ban(ctx, req.GuildID, req.SubjectID, unbanAt); err != nil {
		return failure("ban", err)
	}
	ban, err := c.ledger.AddTemporaryBan(ctx, req.subject(), issuedAt, unbanAt, req.Reason)
	if err != nil {
		c.logger.WithError(err).WithField("subject_id", req.SubjectID).Error("banned on platform but not recorded")
		return failure("record temporary ban", err)
	}
	return success("banned %s for %s (ban #%d)", displayName(req), req.Duration, ban.Key)
}

func (c *Commands) PermaBan(ctx context.Context, req Request) Result {
	issuedAt, _ := c.window(0)
	if err := c.punisher.Ban(ctx, req.GuildID, req.SubjectID, 0); err != nil {
		return failure("ban", err)
	}
	ban, err := c.ledger.AddPermanentBan(ctx, req.subject(), issuedAt, req.Reason)
	if err != nil {
		c.logger.WithError(err).WithField("subject_id", req.SubjectID).Error("banned on platform but not recorded")
		return failure("record permanent ban", err)
	}
	return success("permanently banned %s (ban #%d)", displayName(req), ban.Key)
}

func (c *Commands) SoftBan(ctx context.Context, req Request) Result {
	issuedAt, _ := c.window(0)
	if err := c.punisher.Kick(ctx, req.GuildID, req.SubjectID); err != nil {
		return failure("soft ban", err)
	}
	ban, err := c.ledger.AddSoftBan(ctx, req.subject(), issuedAt, req.Reason)
	if err != nil {
		c.logger.WithError(err).WithField("subject_id", req.SubjectID).Error("soft banned on platform but not recorded")
		return failure("record soft ban", err)
	}
	return success("soft banned %s (ban #%d)", displayName(req), ban.Key)
}

// Unmute lifts mute key before its expiry.
func (c *Commands) Unmute(ctx context.Context, key int64) Result {
	mute, err := c.ledger.GetMute(ctx, key)
	if err != nil {
		return failure(fmt.Sprintf("unmute #%d", key), err)
	}
	if !mute.Active {
		return warning("mute #%d is no longer active", key)
	}
	if err := c.punisher.LiftMute(ctx, mute.GuildID, mute.SubjectID); err != nil {
		return failure(fmt.Sprintf("unmute #%d", key), err)
	}
	if _, err := c.ledger.DeactivateMute(ctx, key, ledger.SourceManual); err != nil {
		return failure(fmt.Sprintf("unmute #%d", key), err)
	}
	return success("unmuted %d (mute #%d)", mute.SubjectID, key)
}

// Unban lifts temporary ban key before its expiry.
func (c *Commands) Unban(ctx context.Context, key int64) Result {
	ban, err := c.ledger.GetTemporaryBan(ctx, key)
	if err != nil {
		return failure(fmt.Sprintf("unban #%d", key), err)
	}
	if !ban.Active {
		return warning("ban #%d is no longer active", key)
	}
	if err := c.punisher.LiftBan(ctx, ban.GuildID, ban.SubjectID); err != nil {
		return failure(fmt.Sprintf("unban #%d", key), err)
	}
	if _, err := c.ledger.DeactivateTemporaryBan(ctx, key, ledger.SourceManual); err != nil {
		return failure(fmt.Sprintf("unban #%d", key), err)
	}
	return success("unbanned %s (ban #%d)", ban.SubjectName, key)
}

// History summarizes the sanctions recorded against a member.
func (c *Commands) History(ctx context.Context, guildID, subjectID db.Snowflake) Result {
	h, err := c.ledger.History(ctx, guildID, subjectID)
	if err != nil {
		return failure("history", err)
	}
	total := len(h.Mutes) + len(h.TemporaryBans) + len(h.PermanentBans) + len(h.SoftBans)
	if total == 0 {
		return warning("no sanctions recorded for %d", subjectID)
	}

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "sanctions for %d:", subjectID)
	for _, m := range h.Mutes {
		fmt.Fprintf(sb, "\nmute #%d%s %s", m.Key, activeMark(m.Active), m.Reason)
	}
	for _, b := range h.TemporaryBans {
		fmt.Fprintf(sb, "\ntemporary ban #%d%s %s", b.Key, activeMark(b.Active), b.Reason)
	}
	for _, b := range h.PermanentBans {
		fmt.Fprintf(sb, "\npermanent ban #%d %s", b.Key, b.Reason)
	}
	for _, b := range h.SoftBans {
		fmt.Fprintf(sb, "\nsoft ban #%d %s", b.Key, b.Reason)
	}
	return success("%s", sb.String())
}

func activeMark(active bool) string {
	if active {
		return " (active)"
	}
	return ""
}

func displayName(req Request) string {
	if req.SubjectName != "" {
		return req.SubjectName
	}
	return fmt.Sprint(req.SubjectID)
}
