package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/kratos/internal/db"
	"github.com/iamwavecut/kratos/internal/db/sqlite"
	"github.com/iamwavecut/kratos/internal/ledger"
)

var errPlatformDown = errors.New("platform down")

type call struct {
	method    string
	guildID   db.Snowflake
	subjectID db.Snowflake
}

type fakePunisher struct {
	mu      sync.Mutex
	calls   []call
	failFor map[db.Snowflake]error
	panicOn db.Snowflake
	block   bool
}

func (f *fakePunisher) record(ctx context.Context, method string, guildID, subjectID db.Snowflake) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{method: method, guildID: guildID, subjectID: subjectID})
	err := f.failFor[subjectID]
	block := f.block
	f.mu.Unlock()

	if f.panicOn != 0 && subjectID == f.panicOn {
		panic("enforcer exploded")
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakePunisher) LiftMute(ctx context.Context, guildID, subjectID db.Snowflake) error {
	return f.record(ctx, "lift_mute", guildID, subjectID)
}

func (f *fakePunisher) LiftBan(ctx context.Context, guildID, subjectID db.Snowflake) error {
	return f.record(ctx, "lift_ban", guildID, subjectID)
}

func (f *fakePunisher) Mute(ctx context.Context, guildID, subjectID db.Snowflake, _ db.Timestamp) error {
	return f.record(ctx, "mute", guildID, subjectID)
}

func (f *fakePunisher) Ban(ctx context.Context, guildID, subjectID db.Snowflake, _ db.Timestamp) error {
	return f.record(ctx, "ban", guildID, subjectID)
}

func (f *fakePunisher) Kick(ctx context.Context, guildID, subjectID db.Snowflake) error {
	return f.record(ctx, "kick", guildID, subjectID)
}

func (f *fakePunisher) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	client, err := sqlite.NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return ledger.New(client)
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}
