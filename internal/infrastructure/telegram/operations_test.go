package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"
)

type fakeBotAPI struct {
	mu      sync.Mutex
	methods []string
	fail    map[string]string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_, _ = io.Copy(io.Discard, r.Body)

	f.mu.Lock()
	f.methods = append(f.methods, method)
	description, failing := f.fail[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case method == "getMe":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"kratos","username":"kratos_bot"}}`)
	case failing:
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"`+description+`"}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeBotAPI) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

func newTestOperations(t *testing.T, fake *fakeBotAPI) *Operations {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	bot, err := api.NewBotAPIWithAPIEndpoint("test-token", srv.URL+"/bot%s/%s")
	if err != nil {
		t.Fatalf("new bot api: %v", err)
	}
	return NewOperations(bot)
}

func TestKickBansThenUnbans(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	ops := newTestOperations(t, fake)

	if err := ops.Kick(context.Background(), 10, 20); err != nil {
		t.Fatalf("kick: %v", err)
	}
	got := fake.calls()
	want := []string{"getMe", "banChatMember", "unbanChatMember"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected calls: got %v want %v", got, want)
	}
}

func TestLiftMuteMapsPrivilegeErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{fail: map[string]string{
		"restrictChatMember": "Bad Request: not enough rights to restrict/unrestrict chat member",
	}}
	ops := newTestOperations(t, fake)

	err := ops.LiftMute(context.Background(), 10, 20)
	if !errors.Is(err, ErrNoPrivileges) {
		t.Fatalf("expected privilege error, got %v", err)
	}
}

func TestLiftBanRespectsCancelledContext(t *testing.T) {
	t.Parallel()

	ops := newTestOperations(t, &fakeBotAPI{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either outcome is acceptable once the call raced the cancellation,
	// but a cancelled context must never be reported as a privilege error.
	if err := ops.LiftBan(ctx, 10, 20); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error: %v", err)
	}
}
