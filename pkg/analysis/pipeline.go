// Package analysis drives the book-analysis workflow: an ordered sequence
// of generation stages, each producing one facet of the result aggregate,
// with partial-failure isolation and per-facet refresh.
//
// Stage ordering is strict and sequential. The primary stages (summary,
// quotes) gate the dashboard and fail the whole session on error. The
// secondary stages (vocabulary, quiz, action plan) run in the background
// after the dashboard is visible; their failures are logged and the facet
// simply stays absent. Reader pages, the review, and the podcast are
// generated on demand.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/lorecast/lorecast/pkg/gateway"
	"github.com/lorecast/lorecast/pkg/gen"
)

// Session lifecycle errors.
var (
	// ErrBusy is returned by Start when a session is already running.
	ErrBusy = errors.New("analysis: session already in progress")

	// ErrNotReady is returned by operations that require a completed
	// primary generation.
	ErrNotReady = errors.New("analysis: session not ready")

	// ErrEndOfBook signals that the reader cursor has consumed the
	// entire source text. It is informational, not a failure.
	ErrEndOfBook = errors.New("analysis: end of book")
)

// State is the pipeline session state.
type State int

const (
	// StateIdle: no session; waiting for text.
	StateIdle State = iota
	// StatePrimary: summary and quotes are being generated; the
	// dashboard is not yet visible.
	StatePrimary
	// StateReady: dashboard visible; secondary stages may still be
	// filling in facets in the background.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrimary:
		return "primary-generation"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Config tunes the pipeline. Zero values fall back to reference defaults.
type Config struct {
	// StageDelay is the pacing delay interposed between stages. It
	// bounds load on the generation capability; ordering does not
	// depend on it.
	StageDelay time.Duration

	// ReaderWindow is the character window consumed per reader call.
	ReaderWindow int

	// Temperature is forwarded to generation calls when non-nil.
	Temperature *float32

	// QuoteCount, VocabCount, QuizCount fix the item counts per facet.
	QuoteCount int
	VocabCount int
	QuizCount  int

	// ReviewStyle names the persona the review is written as.
	ReviewStyle string

	// PodcastVoices maps script speaker labels to synthesis voices.
	PodcastVoices map[string]string

	// ChatContextLimit bounds the source prefix given to chat sessions.
	ChatContextLimit int
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		StageDelay:       1500 * time.Millisecond,
		ReaderWindow:     15000,
		QuoteCount:       5,
		VocabCount:       10,
		QuizCount:        5,
		ReviewStyle:      "a seasoned literary critic",
		PodcastVoices:    map[string]string{"Host": "Kore", "Guest": "Puck"},
		ChatContextLimit: 30000,
	}
}

func (c Config) normalize() Config {
	if c.StageDelay < 0 {
		c.StageDelay = 0
	}
	if c.ReaderWindow <= 0 {
		c.ReaderWindow = 15000
	}
	if c.QuoteCount <= 0 {
		c.QuoteCount = 5
	}
	if c.VocabCount <= 0 {
		c.VocabCount = 10
	}
	if c.QuizCount <= 0 {
		c.QuizCount = 5
	}
	if c.ReviewStyle == "" {
		c.ReviewStyle = "a seasoned literary critic"
	}
	if len(c.PodcastVoices) == 0 {
		c.PodcastVoices = map[string]string{"Host": "Kore", "Guest": "Puck"}
	}
	if c.ChatContextLimit <= 0 {
		c.ChatContextLimit = 30000
	}
	return c
}

// Pipeline owns the analysis aggregate for at most one book session at a
// time and sequences all generation stages through the gateway.
type Pipeline struct {
	text   gen.TextGenerator
	speech gen.SpeechSynthesizer
	chats  gen.ChatStarter
	gw     *gateway.Gateway
	cfg    Config
	logger *slog.Logger

	// facetMu serializes all writes to a given facet, so a user
	// refresh can never race a background stage targeting the same
	// facet. Held across the generation call, not just the merge.
	facetMu map[Facet]*sync.Mutex

	mu        sync.Mutex
	state     State
	sessionID string
	source    string
	cursor    int
	result    Result

	secondaryDone chan struct{}
}

// New creates a Pipeline. speech and chats may be nil when podcast audio
// and chat are not needed (they fail gracefully). A nil logger uses the
// default slog logger.
func New(text gen.TextGenerator, speech gen.SpeechSynthesizer, chats gen.ChatStarter, gw *gateway.Gateway, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		text:    text,
		speech:  speech,
		chats:   chats,
		gw:      gw,
		cfg:     cfg.normalize(),
		logger:  logger,
		facetMu: make(map[Facet]*sync.Mutex),
	}
	for _, f := range []Facet{
		FacetSummary, FacetQuotes, FacetVocab, FacetQuiz,
		FacetActionPlan, FacetReader, FacetReview, FacetPodcast,
	} {
		p.facetMu[f] = &sync.Mutex{}
	}
	return p
}

// State returns the current session state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SessionID returns the identifier of the current session, or "" when idle.
func (p *Pipeline) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// Snapshot returns a copy of the current aggregate.
func (p *Pipeline) Snapshot() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result.clone()
}

// SecondaryDone returns a channel closed when the background secondary
// stages of the current session have finished (successfully or not).
// Nil before the first Start.
func (p *Pipeline) SecondaryDone() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.secondaryDone
}

// Start begins a new session over the given source text. It runs the
// primary stages (summary, then quotes) synchronously; on success the
// session is Ready and the secondary stages continue in the background.
// Any primary failure is fatal: the session reverts to Idle and the error
// is returned.
func (p *Pipeline) Start(ctx context.Context, source string) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return ErrBusy
	}
	session := uuid.NewString()
	p.state = StatePrimary
	p.sessionID = session
	p.source = source
	p.cursor = 0
	p.result = Result{}
	done := make(chan struct{})
	p.secondaryDone = done
	p.mu.Unlock()

	// No secondary loop owns done yet, so the failure paths close it
	// here; waiters on SecondaryDone must never hang on a dead session.
	if err := p.generateSummary(ctx, session); err != nil {
		close(done)
		p.resetIf(session)
		return fmt.Errorf("summary stage: %w", err)
	}
	p.pace(ctx)
	if err := p.generateQuotes(ctx, session, nil); err != nil {
		close(done)
		p.resetIf(session)
		return fmt.Errorf("quotes stage: %w", err)
	}

	p.mu.Lock()
	if p.sessionID != session {
		// Reset while the primary stages ran.
		p.mu.Unlock()
		close(done)
		return ErrNotReady
	}
	p.state = StateReady
	p.mu.Unlock()

	// The caller's request context may end as soon as the dashboard is
	// visible; the secondary stages outlive it.
	go p.runSecondary(context.WithoutCancel(ctx), session, done)
	return nil
}

// Reset destroys the current session and returns to Idle.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearSession()
}

// resetIf reverts to Idle only when session is still the live one, so a
// failed stage of an abandoned session cannot tear down its successor.
func (p *Pipeline) resetIf(session string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionID == session {
		p.clearSession()
	}
}

func (p *Pipeline) clearSession() {
	p.state = StateIdle
	p.sessionID = ""
	p.source = ""
	p.cursor = 0
	p.result = Result{}
}

// runSecondary fills in vocabulary, quiz, and action plan, strictly in
// that order, for one session only. Failures are logged and never fatal;
// later stages still run. The loop stops as soon as its session is no
// longer the live one, and a stage that was in flight across a reset
// surfaces ErrNotReady from the merge guard.
func (p *Pipeline) runSecondary(ctx context.Context, session string, done chan struct{}) {
	defer close(done)

	stages := []struct {
		facet Facet
		run   func(context.Context) error
	}{
		{FacetVocab, func(ctx context.Context) error { return p.generateVocab(ctx, session, nil) }},
		{FacetQuiz, func(ctx context.Context) error { return p.generateQuiz(ctx, session, nil) }},
		{FacetActionPlan, func(ctx context.Context) error { return p.generateActionPlan(ctx, session) }},
	}
	for _, stage := range stages {
		p.pace(ctx)
		if !p.sessionAlive(session) {
			return
		}
		if err := stage.run(ctx); err != nil {
			if errors.Is(err, ErrNotReady) {
				return // session was reset while the stage was in flight
			}
			p.logger.Warn("secondary stage failed, facet stays absent",
				"facet", stage.facet, "err", err)
		}
	}
}

// sessionAlive reports whether session is still the live, ready session.
func (p *Pipeline) sessionAlive(session string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateReady && p.sessionID == session
}

// readySession returns the live session's id, or ErrNotReady.
func (p *Pipeline) readySession() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady {
		return "", ErrNotReady
	}
	return p.sessionID, nil
}

// Refresh regenerates a single facet, excluding the provided existing
// items, leaving every other facet untouched. Supported facets: quotes,
// vocab, quiz, bookReview.
func (p *Pipeline) Refresh(ctx context.Context, facet Facet, exclude []string) error {
	session, err := p.readySession()
	if err != nil {
		return err
	}
	switch facet {
	case FacetQuotes:
		return p.generateQuotes(ctx, session, exclude)
	case FacetVocab:
		return p.generateVocab(ctx, session, exclude)
	case FacetQuiz:
		return p.generateQuiz(ctx, session, exclude)
	case FacetReview:
		return p.generateReview(ctx, session)
	default:
		return fmt.Errorf("analysis: facet %q cannot be refreshed", facet)
	}
}

// GenerateReview produces the stylized review facet on demand.
func (p *Pipeline) GenerateReview(ctx context.Context) error {
	session, err := p.readySession()
	if err != nil {
		return err
	}
	return p.generateReview(ctx, session)
}

func (p *Pipeline) generateReview(ctx context.Context, session string) error {
	mu := p.facetMu[FacetReview]
	mu.Lock()
	defer mu.Unlock()

	var review BookReview
	err := p.generateJSON(ctx, "review", reviewPrompt(p.sourceText(), p.cfg.ReviewStyle), reviewSchema, &review)
	if err != nil {
		return fmt.Errorf("review stage: %w", err)
	}
	if review.Style == "" {
		review.Style = p.cfg.ReviewStyle
	}
	if !p.merge(session, func(r *Result) { r.Review = &review }) {
		return ErrNotReady
	}
	return nil
}

// StartChat opens a chat session whose fixed system context is the book
// text truncated to the configured prefix.
func (p *Pipeline) StartChat(ctx context.Context) (gen.Chat, error) {
	if _, err := p.readySession(); err != nil {
		return nil, err
	}
	if p.chats == nil {
		return nil, errors.New("analysis: chat capability not configured")
	}
	src := p.sourceText()
	if len(src) > p.cfg.ChatContextLimit {
		src = src[:p.cfg.ChatContextLimit]
	}
	return p.chats.StartChat(ctx, "You are discussing the following book with the reader.\n\n"+src)
}

func (p *Pipeline) generateSummary(ctx context.Context, session string) error {
	mu := p.facetMu[FacetSummary]
	mu.Lock()
	defer mu.Unlock()

	var summary Summary
	if err := p.generateJSON(ctx, "summary", summaryPrompt(p.sourceText()), summarySchema, &summary); err != nil {
		return err
	}
	if summary.OverallSummary == "" || len(summary.Chapters) == 0 {
		return fmt.Errorf("%w: empty summary", gen.ErrBadResponse)
	}
	if !p.merge(session, func(r *Result) { r.Summary = &summary }) {
		return ErrNotReady
	}
	return nil
}

func (p *Pipeline) generateQuotes(ctx context.Context, session string, exclude []string) error {
	mu := p.facetMu[FacetQuotes]
	mu.Lock()
	defer mu.Unlock()

	var list quoteList
	prompt := quotesPrompt(p.sourceText(), p.cfg.QuoteCount, exclude)
	if err := p.generateJSON(ctx, "quotes", prompt, quotesSchema, &list); err != nil {
		return err
	}
	if len(list.Quotes) == 0 {
		return fmt.Errorf("%w: no quotes", gen.ErrBadResponse)
	}
	if !p.merge(session, func(r *Result) { r.Quotes = list.Quotes }) {
		return ErrNotReady
	}
	return nil
}

func (p *Pipeline) generateVocab(ctx context.Context, session string, exclude []string) error {
	mu := p.facetMu[FacetVocab]
	mu.Lock()
	defer mu.Unlock()

	var list vocabList
	prompt := vocabPrompt(p.sourceText(), p.cfg.VocabCount, exclude)
	if err := p.generateJSON(ctx, "vocab", prompt, vocabSchema, &list); err != nil {
		return err
	}
	if !p.merge(session, func(r *Result) { r.Vocab = list.Vocab }) {
		return ErrNotReady
	}
	return nil
}

func (p *Pipeline) generateQuiz(ctx context.Context, session string, exclude []string) error {
	mu := p.facetMu[FacetQuiz]
	mu.Lock()
	defer mu.Unlock()

	var list quizList
	prompt := quizPrompt(p.sourceText(), p.cfg.QuizCount, exclude)
	if err := p.generateJSON(ctx, "quiz", prompt, quizSchema, &list); err != nil {
		return err
	}
	if !p.merge(session, func(r *Result) { r.Quiz = list.Questions }) {
		return ErrNotReady
	}
	return nil
}

func (p *Pipeline) generateActionPlan(ctx context.Context, session string) error {
	mu := p.facetMu[FacetActionPlan]
	mu.Lock()
	defer mu.Unlock()

	var list actionList
	if err := p.generateJSON(ctx, "actionPlan", actionPlanPrompt(p.sourceText()), actionPlanSchema, &list); err != nil {
		return err
	}
	if !p.merge(session, func(r *Result) { r.ActionPlan = list.Items }) {
		return ErrNotReady
	}
	return nil
}

// generateJSON runs one structured generation call through the gateway.
func (p *Pipeline) generateJSON(ctx context.Context, name, prompt string, schema *jsonschema.Schema, out any) error {
	return p.gw.Do(ctx, name, func(ctx context.Context) error {
		return p.text.GenerateJSON(ctx, gen.GenerateRequest{
			Prompt:      prompt,
			Schema:      schema,
			Temperature: p.cfg.Temperature,
		}, out)
	})
}

// merge applies a single-facet mutation to the aggregate, but only when
// the session that produced it is still the live one. Work from a session
// that was reset merges nowhere; the false return tells the stage so.
func (p *Pipeline) merge(session string, fn func(*Result)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionID != session {
		return false
	}
	fn(&p.result)
	return true
}

func (p *Pipeline) sourceText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// pace sleeps the inter-stage delay, returning early on ctx cancellation.
func (p *Pipeline) pace(ctx context.Context) {
	if p.cfg.StageDelay <= 0 {
		return
	}
	t := time.NewTimer(p.cfg.StageDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// speakerLabels returns the configured podcast speakers in stable order.
func (p *Pipeline) speakerLabels() []string {
	labels := make([]string, 0, len(p.cfg.PodcastVoices))
	for s := range p.cfg.PodcastVoices {
		labels = append(labels, s)
	}
	sort.Strings(labels)
	return labels
}

// trimmedRemainder reports whether the text after the cursor is empty or
// whitespace only.
func trimmedRemainder(s string, cursor int) bool {
	if cursor >= len(s) {
		return true
	}
	return strings.TrimSpace(s[cursor:]) == ""
}
