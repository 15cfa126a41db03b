package bot

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func testCheckIn(store MessageStore, sender Sender, gen Generator) *CheckIn {
	b := testBot(store, sender, gen)
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewCheckIn(b, logger)
}

func TestCheckInRun(t *testing.T) {
	t.Run("zero active users sends nothing", func(t *testing.T) {
		store := newFakeStore()
		sender := &fakeSender{}
		c := testCheckIn(store, sender, &fakeGen{})

		c.Run(context.Background())

		if got := len(sender.sent()); got != 0 {
			t.Errorf("got %d sends, want 0", got)
		}
	})

	t.Run("active user receives one check-in", func(t *testing.T) {
		store := newFakeStore()
		store.users["u1"] = &User{
			PhoneNumber:     "u1",
			Name:            "Amy",
			Activated:       true,
			LastInteraction: time.Now(),
		}
		sender := &fakeSender{}
		c := testCheckIn(store, sender, &fakeGen{reply: "thinking of you"})

		c.Run(context.Background())

		sends := sender.sent()
		if len(sends) != 1 {
			t.Fatalf("got %d sends, want 1", len(sends))
		}
		if !strings.HasPrefix(sends[0], "thinking of you") {
			t.Errorf("check-in = %q", sends[0])
		}

		// Delivered check-ins are persisted as bot messages.
		found := false
		for _, m := range store.messages {
			if m.PhoneNumber == "u1" && m.IsBot {
				found = true
			}
		}
		if !found {
			t.Error("check-in message was not persisted")
		}
	})

	t.Run("stale user outside the window is skipped", func(t *testing.T) {
		store := newFakeStore()
		store.users["u1"] = &User{
			PhoneNumber:     "u1",
			Name:            "Amy",
			Activated:       true,
			LastInteraction: time.Now().AddDate(0, 0, -30),
		}
		sender := &fakeSender{}
		c := testCheckIn(store, sender, &fakeGen{})

		c.Run(context.Background())

		if got := len(sender.sent()); got != 0 {
			t.Errorf("got %d sends, want 0 for stale user", got)
		}
	})

	t.Run("per-user panic does not abort the batch", func(t *testing.T) {
		store := newFakeStore()
		now := time.Now()
		store.users["u1"] = &User{PhoneNumber: "u1", Name: "Amy", Activated: true, LastInteraction: now}
		store.users["u2"] = &User{PhoneNumber: "u2", Name: "John", Activated: true, LastInteraction: now}
		sender := &fakeSender{}

		// Panics on the first generation only.
		gen := &panicOnceGen{}
		c := testCheckIn(store, sender, gen)

		c.Run(context.Background())

		if got := len(sender.sent()); got != 1 {
			t.Errorf("got %d sends, want 1 (second user survives first user's panic)", got)
		}
	})
}

type panicOnceGen struct {
	calls int
}

func (g *panicOnceGen) Generate(context.Context, []Turn) string {
	g.calls++
	if g.calls == 1 {
		panic("backend exploded")
	}
	return "still here"
}

func TestCheckInStop(t *testing.T) {
	store := newFakeStore()
	store.users["u1"] = &User{PhoneNumber: "u1", Activated: true, LastInteraction: time.Now()}
	sender := &fakeSender{}
	c := testCheckIn(store, sender, &fakeGen{})

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Stop()

	// A manual run after Stop still works; Stop only gates scheduled
	// iterations.
	c.Run(context.Background())
	if got := len(sender.sent()); got != 1 {
		t.Errorf("got %d sends, want 1", got)
	}
}

func TestCheckInBadSchedule(t *testing.T) {
	store := newFakeStore()
	c := testCheckIn(store, &fakeSender{}, &fakeGen{})
	c.bot.cfg.CheckIn.Schedule = "not a cron expr"

	if err := c.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
