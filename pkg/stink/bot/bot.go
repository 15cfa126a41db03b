// Package bot – bot.go is the session state machine and turn pipeline.
// One inbound message moves its sender's session through onboarding or,
// once active, through the full reply pipeline: mood classification,
// history-backed context assembly, generation, post-processing, and
// paced chunked delivery.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pbaptista/stink/pkg/stink/channels"
)

// MessageStore is the persistence surface the pipeline needs.
type MessageStore interface {
	InsertChatMessage(ctx context.Context, phone, message string, isBot bool, mood Mood) error
	UpsertUser(ctx context.Context, patch ProfilePatch) error
	GetUser(ctx context.Context, phone string) (*User, error)
	RecentHistory(ctx context.Context, phone string, limit int) ([]ChatMessage, error)
	LastMood(ctx context.Context, phone string) (Mood, error)
	InsertSuggestion(ctx context.Context, phone string, mood Mood, suggestion string) error
	ActiveUsersSince(ctx context.Context, days int) ([]User, error)
}

// Sender delivers outbound text to a recipient.
type Sender interface {
	Send(ctx context.Context, to string, message *channels.OutgoingMessage) error
}

// Generator produces a reply for an assembled turn list. Implementations
// must return usable text on every call (fallback on failure), never an
// error.
type Generator interface {
	Generate(ctx context.Context, turns []Turn) string
}

// Fixed conversational copy. Onboarding messages are intentionally
// static; only active-turn replies go through the model.
const (
	greetingReply = "Hey! I'm Stink, your pocket companion. What's your name?"

	genderPrompt = "Nice to meet you! Quick one so I get it right: is that a boy name or a girl name? (you can also say skip)"

	activeWelcome = "All set! I'm around whenever you want to talk. So, how's your day going?"

	apologyReply = "Oops, something went sideways on my end. Mind sending that again?"

	suggestionPrompt = "The user seems to be feeling down. Suggest one short, concrete, uplifting activity they could do right now. Keep it under two sentences."
)

// Bot wires the session store, persistence, transport, and generator
// into the per-sender turn pipeline.
type Bot struct {
	cfg      *Config
	store    MessageStore
	sender   Sender
	gen      Generator
	sessions *SessionStore
	logger   *slog.Logger

	// rng drives emoji picks and the sad-turn suggestion roll. Guarded
	// by rngMu since turns for different senders run concurrently.
	rng   *rand.Rand
	rngMu sync.Mutex

	// suggestionOdds is the probability of sending a suggestion on a
	// sad turn. Tests pin it to 0 or 1.
	suggestionOdds float64

	// chunkDelay is the pacing delay between delivered chunks.
	chunkDelay time.Duration

	// queues serializes turn processing per sender.
	queuesMu sync.Mutex
	queues   map[string]chan *channels.IncomingMessage
	wg       sync.WaitGroup
}

// New creates a Bot from config and its collaborators.
func New(cfg *Config, store MessageStore, sender Sender, gen Generator, logger *slog.Logger) *Bot {
	return &Bot{
		cfg:            cfg,
		store:          store,
		sender:         sender,
		gen:            gen,
		sessions:       NewSessionStore(),
		logger:         logger.With("component", "bot"),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		suggestionOdds: 0.5,
		chunkDelay:     cfg.Reply.ChunkDelay,
		queues:         make(map[string]chan *channels.IncomingMessage),
	}
}

// Run consumes inbound messages until ctx is cancelled or the channel
// closes. Messages from the same sender are processed strictly in
// order; different senders proceed concurrently.
func (b *Bot) Run(ctx context.Context, messages <-chan *channels.IncomingMessage) {
	for {
		select {
		case <-ctx.Done():
			b.drainQueues()
			return
		case msg, ok := <-messages:
			if !ok {
				b.drainQueues()
				return
			}
			b.enqueue(ctx, msg)
		}
	}
}

// enqueue routes msg onto its sender's serial queue, starting a worker
// goroutine for senders seen for the first time.
func (b *Bot) enqueue(ctx context.Context, msg *channels.IncomingMessage) {
	b.queuesMu.Lock()
	q, ok := b.queues[msg.From]
	if !ok {
		q = make(chan *channels.IncomingMessage, 16)
		b.queues[msg.From] = q
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for m := range q {
				b.HandleMessage(ctx, m)
			}
		}()
	}
	b.queuesMu.Unlock()

	select {
	case q <- msg:
	default:
		b.logger.Warn("sender queue full, dropping message", "from", msg.From)
	}
}

func (b *Bot) drainQueues() {
	b.queuesMu.Lock()
	for _, q := range b.queues {
		close(q)
	}
	b.queues = make(map[string]chan *channels.IncomingMessage)
	b.queuesMu.Unlock()
	b.wg.Wait()
}

// HandleMessage processes one inbound message through the session state
// machine. Any panic in the pipeline is caught here and answered with a
// generic apology so one bad turn cannot take the process down.
func (b *Bot) HandleMessage(ctx context.Context, msg *channels.IncomingMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("turn handler panicked",
				"from", msg.From,
				"panic", r)
			b.deliver(ctx, msg.From, apologyReply)
		}
	}()

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return
	}

	sess := b.sessions.Get(msg.From)
	b.logger.Debug("inbound message", "from", msg.From, "state", sess.State.String())

	switch sess.State {
	case StateNew:
		b.handleNew(ctx, msg.From, sess, text)
	case StateAwaitingName:
		b.handleAwaitingName(ctx, msg.From, sess, text)
	case StateAwaitingGender:
		b.handleAwaitingGender(ctx, msg.From, sess, text)
	case StateActive:
		b.handleActiveTurn(ctx, msg.From, text)
	}
}

// handleNew starts onboarding on the trigger phrase. Before that, it
// checks the store for an already-activated profile so users whose
// in-memory session was lost to a restart resume as active instead of
// being ignored.
func (b *Bot) handleNew(ctx context.Context, from string, sess *Session, text string) {
	user, err := b.store.GetUser(ctx, from)
	if err != nil {
		b.logger.Warn("profile lookup failed", "from", from, "error", err)
	}
	if user != nil && user.Activated {
		b.logger.Info("restoring active session from profile", "from", from)
		sess.State = StateActive
		b.handleActiveTurn(ctx, from, text)
		return
	}

	if !strings.Contains(strings.ToLower(text), strings.ToLower(b.cfg.Trigger)) {
		// Strangers without the trigger phrase are ignored.
		return
	}

	sess.State = StateAwaitingName
	b.deliver(ctx, from, greetingReply)
}

// handleAwaitingName treats the message as the candidate name. A
// resolved gender guess completes onboarding in one step; otherwise the
// name is parked and the sender is asked to clarify.
func (b *Bot) handleAwaitingName(ctx context.Context, from string, sess *Session, text string) {
	name := strings.TrimSpace(text)
	gender := GuessGender(name)

	if gender == GenderUnknown {
		sess.PendingName = name
		sess.State = StateAwaitingGender
		b.deliver(ctx, from, genderPrompt)
		return
	}

	if !b.activateProfile(ctx, from, name, gender, GuessAgeBracket(text)) {
		return
	}
	sess.State = StateActive
	b.deliver(ctx, from, fmt.Sprintf("Great to meet you, %s! %s", name, activeWelcome))
}

// handleAwaitingGender resolves gender from keywords in the reply and
// completes onboarding with the parked name.
func (b *Bot) handleAwaitingGender(ctx context.Context, from string, sess *Session, text string) {
	gender := ResolveGenderKeyword(text)
	name := sess.PendingName

	if !b.activateProfile(ctx, from, name, gender, GuessAgeBracket(text)) {
		return
	}
	sess.PendingName = ""
	sess.State = StateActive
	b.deliver(ctx, from, fmt.Sprintf("Got it, %s! %s", name, activeWelcome))
}

// activateProfile upserts the onboarded profile. An upsert failure
// aborts the turn with no acknowledgment; the sender's next message
// retries the same transition.
func (b *Bot) activateProfile(ctx context.Context, from, name string, gender Gender, bracket AgeBracket) bool {
	patch := ProfilePatch{PhoneNumber: from, Name: &name, Gender: &gender}
	if bracket != AgeUnknown {
		patch.AgeBracket = &bracket
	}
	if err := b.store.UpsertUser(ctx, patch); err != nil {
		b.logger.Error("profile upsert failed, aborting turn", "from", from, "error", err)
		return false
	}
	return true
}

// handleActiveTurn runs the full reply pipeline for an onboarded
// sender. Ordering matters: the inbound message is persisted before
// context assembly so the reply's context includes it, and the outbound
// message is persisted before delivery so future context cannot miss a
// reply the user already saw.
func (b *Bot) handleActiveTurn(ctx context.Context, from, text string) {
	mood := ClassifyMood(text)

	if err := b.store.InsertChatMessage(ctx, from, text, false, mood); err != nil {
		b.logger.Warn("inbound persist failed", "from", from, "error", err)
	}
	if err := b.store.UpsertUser(ctx, ProfilePatch{PhoneNumber: from}); err != nil {
		b.logger.Error("profile upsert failed, aborting turn", "from", from, "error", err)
		return
	}

	history, err := b.store.RecentHistory(ctx, from, b.cfg.History)
	if err != nil {
		b.logger.Warn("history fetch failed, continuing without history", "from", from, "error", err)
		history = nil
	}

	user, err := b.store.GetUser(ctx, from)
	if err != nil {
		b.logger.Warn("profile fetch failed", "from", from, "error", err)
	}
	var aux any
	if user != nil {
		aux = map[string]any{
			"name":       user.Name,
			"gender":     user.Gender,
			"ageBracket": user.AgeBracket,
			"mood":       mood,
		}
	}

	turns := BuildContext(b.cfg.Persona, aux, history, text)
	reply := b.processReply(b.gen.Generate(ctx, turns), mood)

	if err := b.store.InsertChatMessage(ctx, from, reply, true, ""); err != nil {
		b.logger.Warn("outbound persist failed", "from", from, "error", err)
	}
	b.deliver(ctx, from, reply)

	if mood == MoodSad && b.roll() {
		b.sendSuggestion(ctx, from, text, history)
	}
}

// sendSuggestion generates and delivers a follow-up activity suggestion
// for a sad turn, persisting it to the suggestions table.
func (b *Bot) sendSuggestion(ctx context.Context, from, inbound string, history []ChatMessage) {
	turns := BuildContext(b.cfg.Persona, map[string]any{"lastMessage": inbound}, history, suggestionPrompt)
	suggestion := b.processReply(b.gen.Generate(ctx, turns), MoodSad)

	if err := b.store.InsertSuggestion(ctx, from, MoodSad, suggestion); err != nil {
		b.logger.Warn("suggestion persist failed", "from", from, "error", err)
	}
	b.deliver(ctx, from, suggestion)
}

// processReply applies the post-processing chain: word-limit trim, then
// a mood emoji.
func (b *Bot) processReply(reply string, mood Mood) string {
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	return WithEmoji(TrimWords(reply), mood, b.rng)
}

// deliver sends text as paced chunks. Delivery failures are logged, not
// propagated; the turn's store writes already happened.
func (b *Bot) deliver(ctx context.Context, to, text string) {
	chunks := Chunks(text)
	for i, chunk := range chunks {
		if i > 0 && b.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.chunkDelay):
			}
		}
		if err := b.sender.Send(ctx, to, &channels.OutgoingMessage{Content: chunk}); err != nil {
			b.logger.Warn("send failed", "to", to, "chunk", i+1, "of", len(chunks), "error", err)
		}
	}
}

func (b *Bot) roll() bool {
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	return b.rng.Float64() < b.suggestionOdds
}
