package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/kratos/internal/db"
)

const msgNoPrivileges = "not enough rights"

var ErrNoPrivileges = errors.New("no privileges")

// Operations applies and lifts sanctions through the Bot API. Guild and
// subject snowflakes are Telegram chat and user IDs bit-cast to uint64.
type Operations struct {
	bot *api.BotAPI
}

func NewOperations(bot *api.BotAPI) *Operations {
	return &Operations{bot: bot}
}

func chatMember(guildID, subjectID db.Snowflake) api.ChatMemberConfig {
	return api.ChatMemberConfig{
		ChatConfig: api.ChatConfig{ChatID: int64(guildID)},
		UserID:     int64(subjectID),
	}
}

// request runs a Bot API call, giving up when ctx is done. The call itself
// cannot be cancelled, so an abandoned request may still complete.
func (o *Operations) request(ctx context.Context, operation string, c api.Chattable) error {
	done := make(chan error, 1)
	go func() {
		done <- tool.Err(o.bot.Request(c))
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", operation, ctx.Err())
	case err := <-done:
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), msgNoPrivileges) {
			return fmt.Errorf("%s: %w", operation, ErrNoPrivileges)
		}
		return fmt.Errorf("failed to %s user: %w", operation, err)
	}
}

// Mute revokes sending rights until the given unix time.
func (o *Operations) Mute(ctx context.Context, guildID, subjectID db.Snowflake, until db.Timestamp) error {
	return o.request(ctx, "restrict", api.RestrictChatMemberConfig{
		ChatMemberConfig: chatMember(guildID, subjectID),
		UntilDate:        int64(until),
		Permissions:      &api.ChatPermissions{},

		UseIndependentChatPermissions: true,
	})
}

// LiftMute restores the member's sending rights.
func (o *Operations) LiftMute(ctx context.Context, guildID, subjectID db.Snowflake) error {
	return o.request(ctx, "unrestrict", api.RestrictChatMemberConfig{
		ChatMemberConfig: chatMember(guildID, subjectID),
		Permissions: &api.ChatPermissions{
			CanSendMessages:       true,
			CanSendOtherMessages:  true,
			CanAddWebPagePreviews: true,
		},
	})
}

// Ban removes the member until the given unix time; zero means forever.
func (o *Operations) Ban(ctx context.Context, guildID, subjectID db.Snowflake, until db.Timestamp) error {
	return o.request(ctx, "ban", api.BanChatMemberConfig{
		ChatMemberConfig: chatMember(guildID, subjectID),
		UntilDate:        int64(until),
		RevokeMessages:   true,
	})
}

// LiftBan lets a banned member rejoin. Members who are not banned are left
// in place.
func (o *Operations) LiftBan(ctx context.Context, guildID, subjectID db.Snowflake) error {
	return o.request(ctx, "unban", api.UnbanChatMemberConfig{
		ChatMemberConfig: chatMember(guildID, subjectID),
		OnlyIfBanned:     true,
	})
}

// Kick bans the member, revoking their messages, and immediately lifts the
// ban so they may rejoin.
func (o *Operations) Kick(ctx context.Context, guildID, subjectID db.Snowflake) error {
	if err := o.Ban(ctx, guildID, subjectID, 0); err != nil {
		return err
	}
	return o.LiftBan(ctx, guildID, subjectID)
}
