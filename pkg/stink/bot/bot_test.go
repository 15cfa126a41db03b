package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pbaptista/stink/pkg/stink/channels"
)

// ---------- Fakes ----------

type fakeStore struct {
	mu          sync.Mutex
	users       map[string]*User
	messages    []ChatMessage
	suggestions []Suggestion
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*User)}
}

func (f *fakeStore) InsertChatMessage(_ context.Context, phone, message string, isBot bool, mood Mood) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, ChatMessage{
		ID:          int64(len(f.messages) + 1),
		PhoneNumber: phone,
		Message:     message,
		IsBot:       isBot,
		Mood:        mood,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (f *fakeStore) UpsertUser(_ context.Context, patch ProfilePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	u, ok := f.users[patch.PhoneNumber]
	if !ok {
		u = &User{PhoneNumber: patch.PhoneNumber, Gender: GenderUnknown, AgeBracket: AgeUnknown}
		f.users[patch.PhoneNumber] = u
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Gender != nil {
		u.Gender = *patch.Gender
	}
	if patch.AgeBracket != nil {
		u.AgeBracket = *patch.AgeBracket
	}
	u.Activated = true
	u.LastInteraction = time.Now()
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, phone string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[phone]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (f *fakeStore) RecentHistory(_ context.Context, phone string, limit int) ([]ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ChatMessage
	for i := len(f.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if f.messages[i].PhoneNumber == phone {
			out = append(out, f.messages[i])
		}
	}
	return out, nil
}

func (f *fakeStore) LastMood(_ context.Context, phone string) (Mood, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].PhoneNumber == phone {
			if f.messages[i].Mood == "" {
				return MoodNeutral, nil
			}
			return f.messages[i].Mood, nil
		}
	}
	return MoodNeutral, nil
}

func (f *fakeStore) InsertSuggestion(_ context.Context, phone string, mood Mood, suggestion string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions = append(f.suggestions, Suggestion{PhoneNumber: phone, Mood: mood, Suggestion: suggestion})
	return nil
}

func (f *fakeStore) ActiveUsersSince(_ context.Context, days int) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, -days)
	var out []User
	for _, u := range f.users {
		if u.Activated && u.LastInteraction.After(cutoff) {
			out = append(out, *u)
		}
	}
	return out, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sends []string
	to    []string
	err   error
}

func (f *fakeSender) Send(_ context.Context, to string, msg *channels.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sends = append(f.sends, msg.Content)
	f.to = append(f.to, to)
	return nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sends...)
}

type fakeGen struct {
	reply string
	panic bool
}

func (f *fakeGen) Generate(context.Context, []Turn) string {
	if f.panic {
		panic("generator blew up")
	}
	if f.reply == "" {
		return "generated reply"
	}
	return f.reply
}

func testBot(store MessageStore, sender Sender, gen Generator) *Bot {
	cfg := DefaultConfig()
	cfg.Reply.ChunkDelay = 0
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	b := New(cfg, store, sender, gen, logger)
	b.rng = rand.New(rand.NewSource(42))
	return b
}

func inbound(from, content string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:        "m1",
		Channel:   "test",
		From:      from,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// ---------- Onboarding ----------

func TestOnboardingTrigger(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	b := testBot(store, sender, &fakeGen{})
	ctx := context.Background()

	t.Run("non-trigger message from stranger is ignored", func(t *testing.T) {
		b.HandleMessage(ctx, inbound("u1", "hello?"))
		if len(sender.sent()) != 0 {
			t.Errorf("expected no sends, got %v", sender.sent())
		}
	})

	t.Run("trigger starts onboarding with greeting and no store writes", func(t *testing.T) {
		b.HandleMessage(ctx, inbound("u1", "ok HEY STINK are you there"))

		sends := sender.sent()
		if len(sends) != 1 || !strings.Contains(sends[0], "name") {
			t.Fatalf("expected one greeting asking for a name, got %v", sends)
		}
		if len(store.users) != 0 {
			t.Error("no profile row should exist before gender resolution")
		}
		if len(store.messages) != 0 {
			t.Error("no chat messages should be persisted during onboarding")
		}
		if b.sessions.Get("u1").State != StateAwaitingName {
			t.Errorf("state = %v, want awaiting_name", b.sessions.Get("u1").State)
		}
	})
}

func TestOnboardingKnownName(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	b := testBot(store, sender, &fakeGen{})
	ctx := context.Background()

	b.HandleMessage(ctx, inbound("u1", "hey stink"))
	b.HandleMessage(ctx, inbound("u1", "Amy and I'm 25"))

	u := store.users["u1"]
	if u == nil {
		t.Fatal("profile row should exist after resolved gender")
	}
	if u.Gender != GenderFemale {
		t.Errorf("gender = %q, want female", u.Gender)
	}
	if u.AgeBracket != AgeYoungAdult {
		t.Errorf("age bracket = %q, want young adult", u.AgeBracket)
	}
	if got := b.sessions.Get("u1").State; got != StateActive {
		t.Errorf("state = %v, want active", got)
	}
}

func TestOnboardingUnknownNameClarification(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	b := testBot(store, sender, &fakeGen{})
	ctx := context.Background()

	b.HandleMessage(ctx, inbound("u1", "hey stink"))
	b.HandleMessage(ctx, inbound("u1", "Pat"))

	t.Run("moves to awaiting_gender with pending name", func(t *testing.T) {
		sess := b.sessions.Get("u1")
		if sess.State != StateAwaitingGender {
			t.Fatalf("state = %v, want awaiting_gender", sess.State)
		}
		if sess.PendingName != "Pat" {
			t.Errorf("pending name = %q, want Pat", sess.PendingName)
		}
		if len(store.users) != 0 {
			t.Error("no profile row should exist yet")
		}
	})

	t.Run("girl keyword resolves female and activates", func(t *testing.T) {
		b.HandleMessage(ctx, inbound("u1", "it's a girl name"))

		u := store.users["u1"]
		if u == nil {
			t.Fatal("profile row should exist after gender resolution")
		}
		if u.Name != "Pat" {
			t.Errorf("name = %q, want Pat", u.Name)
		}
		if u.Gender != GenderFemale {
			t.Errorf("gender = %q, want female", u.Gender)
		}
		if got := b.sessions.Get("u1").State; got != StateActive {
			t.Errorf("state = %v, want active", got)
		}
	})
}

func TestOnboardingUpsertFailureAbortsSilently(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("disk full")
	sender := &fakeSender{}
	b := testBot(store, sender, &fakeGen{})
	ctx := context.Background()

	b.HandleMessage(ctx, inbound("u1", "hey stink"))
	b.HandleMessage(ctx, inbound("u1", "Amy"))

	// The greeting was sent; the failed activation sends nothing.
	if got := len(sender.sent()); got != 1 {
		t.Errorf("got %d sends, want 1 (greeting only)", got)
	}
	if got := b.sessions.Get("u1").State; got != StateAwaitingName {
		t.Errorf("state = %v, want awaiting_name (turn aborted)", got)
	}
}

// ---------- Active turns ----------

func activeBot(t *testing.T, store *fakeStore, sender *fakeSender, gen Generator) *Bot {
	t.Helper()
	b := testBot(store, sender, gen)
	ctx := context.Background()
	b.HandleMessage(ctx, inbound("u1", "hey stink"))
	b.HandleMessage(ctx, inbound("u1", "Amy"))
	sender.mu.Lock()
	sender.sends = nil
	sender.mu.Unlock()
	return b
}

func TestActiveTurnPipeline(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	b := activeBot(t, store, sender, &fakeGen{reply: "nice to hear"})
	ctx := context.Background()

	b.HandleMessage(ctx, inbound("u1", "today was great and fun"))

	t.Run("inbound persisted with mood", func(t *testing.T) {
		if len(store.messages) < 2 {
			t.Fatalf("got %d messages, want inbound and outbound", len(store.messages))
		}
		in := store.messages[0]
		if in.IsBot || in.Mood != MoodHappy {
			t.Errorf("inbound row = %+v, want user-authored happy", in)
		}
	})

	t.Run("outbound persisted without mood", func(t *testing.T) {
		out := store.messages[1]
		if !out.IsBot || out.Mood != "" {
			t.Errorf("outbound row = %+v, want bot-authored with empty mood", out)
		}
		if !strings.HasPrefix(out.Message, "nice to hear") {
			t.Errorf("outbound message = %q, want generated reply plus emoji", out.Message)
		}
	})

	t.Run("reply delivered with emoji", func(t *testing.T) {
		sends := sender.sent()
		if len(sends) != 1 {
			t.Fatalf("got %d sends, want 1", len(sends))
		}
		if !strings.HasPrefix(sends[0], "nice to hear ") {
			t.Errorf("delivered = %q", sends[0])
		}
	})

	t.Run("trigger phrase in active state is ordinary input", func(t *testing.T) {
		before := len(store.messages)
		b.HandleMessage(ctx, inbound("u1", "hey stink how are you"))
		if len(store.messages) != before+2 {
			t.Error("active-state trigger text should run the normal pipeline")
		}
		if got := b.sessions.Get("u1").State; got != StateActive {
			t.Errorf("state = %v, want active", got)
		}
	})
}

func TestSadTurnSuggestion(t *testing.T) {
	t.Run("suggestion roll forced true", func(t *testing.T) {
		store := newFakeStore()
		sender := &fakeSender{}
		b := activeBot(t, store, sender, &fakeGen{})
		b.suggestionOdds = 1.0

		b.HandleMessage(context.Background(), inbound("u1", "I feel sad and lonely"))

		if len(store.suggestions) != 1 {
			t.Fatalf("got %d suggestion rows, want 1", len(store.suggestions))
		}
		if store.suggestions[0].Mood != MoodSad {
			t.Errorf("suggestion mood = %q, want sad", store.suggestions[0].Mood)
		}
		if got := len(sender.sent()); got != 2 {
			t.Errorf("got %d sends, want reply plus suggestion", got)
		}
	})

	t.Run("suggestion roll forced false", func(t *testing.T) {
		store := newFakeStore()
		sender := &fakeSender{}
		b := activeBot(t, store, sender, &fakeGen{})
		b.suggestionOdds = 0

		b.HandleMessage(context.Background(), inbound("u1", "I feel sad and lonely"))

		if len(store.suggestions) != 0 {
			t.Errorf("got %d suggestion rows, want 0", len(store.suggestions))
		}
		if got := len(sender.sent()); got != 1 {
			t.Errorf("got %d sends, want reply only", got)
		}
	})

	t.Run("happy turn never rolls", func(t *testing.T) {
		store := newFakeStore()
		sender := &fakeSender{}
		b := activeBot(t, store, sender, &fakeGen{})
		b.suggestionOdds = 1.0

		b.HandleMessage(context.Background(), inbound("u1", "what a great fun day"))

		if len(store.suggestions) != 0 {
			t.Errorf("got %d suggestion rows, want 0 on a happy turn", len(store.suggestions))
		}
	})
}

func TestSessionRestoreFromProfile(t *testing.T) {
	store := newFakeStore()
	name := "Amy"
	gender := GenderFemale
	store.users["u9"] = &User{
		PhoneNumber:     "u9",
		Name:            name,
		Gender:          gender,
		Activated:       true,
		LastInteraction: time.Now(),
	}
	sender := &fakeSender{}
	b := testBot(store, sender, &fakeGen{})

	// No in-memory session, no trigger phrase, but an activated profile
	// exists: the message is handled as an active turn.
	b.HandleMessage(context.Background(), inbound("u9", "how are you?"))

	if got := b.sessions.Get("u9").State; got != StateActive {
		t.Errorf("state = %v, want active (restored from profile)", got)
	}
	if got := len(sender.sent()); got != 1 {
		t.Errorf("got %d sends, want 1 reply", got)
	}
}

func TestHandlerPanicSendsApology(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	b := activeBot(t, store, sender, &fakeGen{panic: true})

	b.HandleMessage(context.Background(), inbound("u1", "hello"))

	sends := sender.sent()
	if len(sends) != 1 || sends[0] != apologyReply {
		t.Errorf("got %v, want exactly the apology reply", sends)
	}
}

func TestLongReplyChunkedInOrder(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	// 300 words of 20 chars keeps the reply under the word cap while
	// exceeding one chunk.
	long := strings.TrimSpace(strings.Repeat(strings.Repeat("x", 30)+" ", 150))
	b := activeBot(t, store, sender, &fakeGen{reply: long})

	b.HandleMessage(context.Background(), inbound("u1", "tell me everything"))

	sends := sender.sent()
	if len(sends) < 2 {
		t.Fatalf("got %d sends, want multiple chunks", len(sends))
	}
	joined := strings.Join(sends, "")
	if !strings.HasPrefix(joined, long) {
		t.Error("concatenated chunks do not reconstruct the reply")
	}
	for i, s := range sends {
		if n := len([]rune(s)); n > 4000 {
			t.Errorf("chunk %d has %d chars", i, n)
		}
	}
}

func TestRunSerializesPerSender(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	b := testBot(store, sender, &fakeGen{})

	ctx, cancel := context.WithCancel(context.Background())
	messages := make(chan *channels.IncomingMessage, 8)

	done := make(chan struct{})
	go func() {
		b.Run(ctx, messages)
		close(done)
	}()

	messages <- inbound("u1", "hey stink")
	messages <- inbound("u1", "Amy")
	messages <- inbound("u1", "today was great and fun")
	close(messages)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not drain queues after channel close")
	}
	cancel()

	if got := b.sessions.Get("u1").State; got != StateActive {
		t.Errorf("state = %v, want active after in-order processing", got)
	}
	// Greeting, activation ack, and the active-turn reply.
	if got := len(sender.sent()); got != 3 {
		t.Errorf("got %d sends, want 3: %v", got, sender.sent())
	}
}

func TestSendFailureDoesNotAbortTurn(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{err: fmt.Errorf("socket closed")}
	b := activeBot(t, store, sender, &fakeGen{})

	b.HandleMessage(context.Background(), inbound("u1", "hello there"))

	// Both persists happened despite delivery failing.
	if len(store.messages) != 2 {
		t.Errorf("got %d persisted messages, want 2", len(store.messages))
	}
}
