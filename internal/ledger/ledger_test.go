package ledger_test

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"

	"github.com/iamwavecut/kratos/internal/db"
	"github.com/iamwavecut/kratos/internal/db/sqlite"
	kerrors "github.com/iamwavecut/kratos/internal/errors"
	"github.com/iamwavecut/kratos/internal/ledger"
)

var subject = ledger.Subject{GuildID: 100, SubjectID: 200, SubjectName: "spammer", ModeratorID: 300}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	client, err := sqlite.NewSQLiteClient(context.Background(), t.TempDir(), "test.db")
	if err != nil {
		t.Fatalf("new sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return ledger.New(client)
}

func collect[T any](t *testing.T, seq iter.Seq[T], err error) []T {
	t.Helper()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	return out
}

func TestExpiredMuteScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t)

	mute, err := l.AddMute(ctx, subject, 1000, 2000, "flood")
	if err != nil {
		t.Fatalf("add mute: %v", err)
	}
	if !mute.Active || mute.Key == 0 {
		t.Fatalf("unexpected created mute: %#v", mute)
	}

	seq, err := l.FindExpiredActiveMutes(ctx, 1500)
	if got := collect(t, seq, err); len(got) != 0 {
		t.Fatalf("expected no expired mutes at 1500, got %d", len(got))
	}

	seq, err = l.FindExpiredActiveMutes(ctx, 2001)
	got := collect(t, seq, err)
	if len(got) != 1 || *got[0] != *mute {
		t.Fatalf("expected exactly the created mute at 2001, got %#v", got)
	}

	changed, err := l.DeactivateMute(ctx, mute.Key, ledger.SourceManual)
	if err != nil {
		t.Fatalf("deactivate mute: %v", err)
	}
	if !changed {
		t.Fatalf("expected first deactivation to change the record")
	}

	seq, err = l.FindExpiredActiveMutes(ctx, 2001)
	if got := collect(t, seq, err); len(got) != 0 {
		t.Fatalf("inactive mute must not be returned, got %d", len(got))
	}
}

func TestExpiryIsStrictlyAfterTimestamp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t)

	ban, err := l.AddTemporaryBan(ctx, subject, 10, 20, "raid")
	if err != nil {
		t.Fatalf("add temporary ban: %v", err)
	}

	tests := []struct {
		name string
		now  db.Timestamp
		want int
	}{
		{name: "before", now: 19, want: 0},
		{name: "at expiry", now: 20, want: 0},
		{name: "after", now: 21, want: 1},
	}
	for _, tt := range tests {
		seq, err := l.FindExpiredActiveTemporaryBans(ctx, tt.now)
		got := collect(t, seq, err)
		if len(got) != tt.want {
			t.Fatalf("%s: got %d records, want %d", tt.name, len(got), tt.want)
		}
		if tt.want == 1 && got[0].Key != ban.Key {
			t.Fatalf("%s: unexpected record %#v", tt.name, got[0])
		}
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t)

	ban, err := l.AddTemporaryBan(ctx, subject, 10, 20, "")
	if err != nil {
		t.Fatalf("add temporary ban: %v", err)
	}

	first, err := l.DeactivateTemporaryBan(ctx, ban.Key, ledger.SourceManual)
	if err != nil {
		t.Fatalf("first deactivate: %v", err)
	}
	second, err := l.DeactivateTemporaryBan(ctx, ban.Key, ledger.SourceManual)
	if err != nil {
		t.Fatalf("second deactivate: %v", err)
	}
	if !first || second {
		t.Fatalf("unexpected transitions: first=%v second=%v", first, second)
	}

	stored, err := l.GetTemporaryBan(ctx, ban.Key)
	if err != nil {
		t.Fatalf("get temporary ban: %v", err)
	}
	if stored.Active {
		t.Fatalf("expected inactive ban")
	}
}

func TestConcurrentDeactivateTransitionsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t)

	mute, err := l.AddMute(ctx, subject, 1, 2, "")
	if err != nil {
		t.Fatalf("add mute: %v", err)
	}

	const callers = 16
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := l.DeactivateMute(ctx, mute.Key, ledger.SourceReconciler)
			if err != nil {
				t.Errorf("deactivate mute: %v", err)
				return
			}
			if changed {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if transitions != 1 {
		t.Fatalf("expected exactly one transition, got %d", transitions)
	}
}

func TestDeactivateMissingKeyReturnsNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t)

	if _, err := l.DeactivateMute(ctx, 999, ledger.SourceManual); !errors.Is(err, kerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := l.DeactivateTemporaryBan(ctx, 999, ledger.SourceManual); !errors.Is(err, kerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPermanentBanNeverReturnedByExpiryScan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t)

	temp, err := l.AddTemporaryBan(ctx, subject, 10, 20, "temp")
	if err != nil {
		t.Fatalf("add temporary ban: %v", err)
	}
	perma, err := l.AddPermanentBan(ctx, subject, 10, "perma")
	if err != nil {
		t.Fatalf("add permanent ban: %v", err)
	}

	seq, err := l.FindExpiredActiveTemporaryBans(ctx, 1<<40)
	got := collect(t, seq, err)
	if len(got) != 1 || got[0].Key != temp.Key {
		t.Fatalf("expected only the temporary ban, got %#v", got)
	}

	stored, err := l.GetPermanentBan(ctx, perma.Key)
	if err != nil {
		t.Fatalf("get permanent ban: %v", err)
	}
	if *stored != *perma {
		t.Fatalf("permanent ban changed: got %#v want %#v", stored, perma)
	}
}

func TestAuditBansAreRecordedUnchanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLedger(t)

	soft, err := l.AddSoftBan(ctx, subject, 50, "cleanup")
	if err != nil {
		t.Fatalf("add soft ban: %v", err)
	}
	if _, err := l.AddMute(ctx, subject, 50, 60, ""); err != nil {
		t.Fatalf("add mute: %v", err)
	}

	stored, err := l.GetSoftBan(ctx, soft.Key)
	if err != nil {
		t.Fatalf("get soft ban: %v", err)
	}
	if *stored != *soft {
		t.Fatalf("soft ban changed: got %#v want %#v", stored, soft)
	}

	history, err := l.History(ctx, subject.GuildID, subject.SubjectID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.SoftBans) != 1 || len(history.Mutes) != 1 || len(history.PermanentBans) != 0 || len(history.TemporaryBans) != 0 {
		t.Fatalf("unexpected history: %#v", history)
	}
	if history.SoftBans[0].SubjectName != "spammer" || history.SoftBans[0].ModeratorID != subject.ModeratorID {
		t.Fatalf("unexpected soft ban fields: %#v", history.SoftBans[0])
	}
}

func TestNilStoreIsUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := ledger.New(nil)

	if _, err := l.AddMute(ctx, subject, 1, 2, ""); !errors.Is(err, kerrors.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if _, err := l.DeactivateMute(ctx, 1, ledger.SourceManual); !errors.Is(err, kerrors.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if _, err := l.FindExpiredActiveTemporaryBans(ctx, 1); !errors.Is(err, kerrors.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
