package playback

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lorecast/lorecast/pkg/analysis"
	"github.com/lorecast/lorecast/pkg/gateway"
	"github.com/lorecast/lorecast/pkg/gen"
	"github.com/lorecast/lorecast/pkg/speechcache"
)

type fakePlay struct {
	audio   []byte
	offset  time.Duration
	done    func()
	stopped bool
}

type fakeDevice struct {
	mu    sync.Mutex
	plays []*fakePlay
	err   error // returned by Play when set
}

type fakeHandle struct {
	dev *fakeDevice
	p   *fakePlay
}

func (h *fakeHandle) Stop() {
	h.dev.mu.Lock()
	h.p.stopped = true
	h.dev.mu.Unlock()
}

func (d *fakeDevice) Play(audio []byte, offset time.Duration, done func()) (Handle, error) {
	d.mu.Lock()
	if err := d.err; err != nil {
		d.mu.Unlock()
		return nil, err
	}
	p := &fakePlay{audio: bytes.Clone(audio), offset: offset, done: done}
	d.plays = append(d.plays, p)
	d.mu.Unlock()
	return &fakeHandle{dev: d, p: p}, nil
}

func (d *fakeDevice) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.plays)
}

func (d *fakeDevice) at(i int) fakePlay {
	d.mu.Lock()
	defer d.mu.Unlock()
	return *d.plays[i]
}

// finish simulates the backend reporting completion for play i. Some
// backends fire this even after a stop, which is exactly the race the
// pause path has to survive.
func (d *fakeDevice) finish(i int) {
	d.mu.Lock()
	done := d.plays[i].done
	d.mu.Unlock()
	done()
}

type countingTTS struct {
	mu    sync.Mutex
	calls int
	texts []string
}

func (c *countingTTS) Synthesize(_ context.Context, req gen.SpeakRequest) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.texts = append(c.texts, req.Text)
	return []byte(req.Text), nil
}

func (c *countingTTS) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingTTS) lastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.texts) == 0 {
		return ""
	}
	return c.texts[len(c.texts)-1]
}

func testGW() *gateway.Gateway {
	return gateway.New(gateway.Options{MaxRetries: 1, InitialBackoff: time.Millisecond, Multiplier: 1.5}, nil)
}

func TestPlayerToggle(t *testing.T) {
	dev := &fakeDevice{}
	p := NewPlayer(NewOutput(dev), nil, testGW(), &countingTTS{}, "Kore")

	if err := p.Play(context.Background(), "hello there", "q1"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := p.ActiveID(); got != "q1" {
		t.Fatalf("active = %q; want q1", got)
	}

	// Same id toggles off without starting new playback.
	if err := p.Play(context.Background(), "hello there", "q1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := p.ActiveID(); got != "" {
		t.Errorf("active after toggle = %q; want empty", got)
	}
	if !dev.at(0).stopped {
		t.Error("toggle must stop the device playback")
	}
	if dev.count() != 1 {
		t.Errorf("device plays = %d; want 1", dev.count())
	}
}

func TestPlayerReplacesActive(t *testing.T) {
	dev := &fakeDevice{}
	p := NewPlayer(NewOutput(dev), nil, testGW(), &countingTTS{}, "Kore")

	ctx := context.Background()
	if err := p.Play(ctx, "first", "q1"); err != nil {
		t.Fatal(err)
	}
	if err := p.Play(ctx, "second", "q2"); err != nil {
		t.Fatal(err)
	}
	if !dev.at(0).stopped {
		t.Error("starting q2 must stop q1")
	}
	if got := p.ActiveID(); got != "q2" {
		t.Errorf("active = %q; want q2", got)
	}
}

func TestPlayerNaturalEndClearsActive(t *testing.T) {
	dev := &fakeDevice{}
	p := NewPlayer(NewOutput(dev), nil, testGW(), &countingTTS{}, "Kore")

	if err := p.Play(context.Background(), "short", "q1"); err != nil {
		t.Fatal(err)
	}
	dev.finish(0)
	if got := p.ActiveID(); got != "" {
		t.Errorf("active after natural end = %q; want empty", got)
	}
}

func TestPlayerDeviceFailureClearsActive(t *testing.T) {
	dev := &fakeDevice{err: errors.New("device busy")}
	tts := &countingTTS{}
	p := NewPlayer(NewOutput(dev), nil, testGW(), tts, "Kore")

	if err := p.Play(context.Background(), "hello there", "q1"); err == nil {
		t.Fatal("want device error")
	}
	if got := p.ActiveID(); got != "" {
		t.Errorf("active after device failure = %q; want empty", got)
	}

	// A retry with the same id must start playback, not toggle a no-op.
	dev.mu.Lock()
	dev.err = nil
	dev.mu.Unlock()
	if err := p.Play(context.Background(), "hello there", "q1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := p.ActiveID(); got != "q1" {
		t.Errorf("active after retry = %q; want q1", got)
	}
	if dev.count() != 1 {
		t.Errorf("device plays = %d; want 1", dev.count())
	}
}

func TestPlayerCacheFirst(t *testing.T) {
	cache, err := speechcache.New()
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	dev := &fakeDevice{}
	tts := &countingTTS{}
	p := NewPlayer(NewOutput(dev), cache, testGW(), tts, "Kore")

	ctx := context.Background()
	if err := p.Play(ctx, "same text", "q1"); err != nil {
		t.Fatal(err)
	}
	dev.finish(0)
	if err := p.Play(ctx, "same text", "q2"); err != nil {
		t.Fatal(err)
	}

	if got := tts.callCount(); got != 1 {
		t.Errorf("synthesizer calls = %d; want 1 (second play served from cache)", got)
	}
	if !bytes.Equal(dev.at(0).audio, dev.at(1).audio) {
		t.Error("cached audio differs from synthesized audio")
	}
}

func readerSegs() []analysis.ReaderSegment {
	return []analysis.ReaderSegment{
		{Original: "First sentence.", Translation: "Première phrase."},
		{Original: "Second sentence.", Translation: "Deuxième phrase."},
	}
}

func newReader(dev *fakeDevice, tts *countingTTS, now Clock) *ReaderPlayer {
	out := NewOutput(dev)
	return NewReaderPlayer(out, NewPlayer(out, nil, testGW(), tts, "Kore"), now)
}

func TestReaderAutoAdvance(t *testing.T) {
	dev := &fakeDevice{}
	tts := &countingTTS{}
	r := newReader(dev, tts, nil)
	r.SetSegments(readerSegs())

	if err := r.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	dev.finish(0)

	if got := r.Index(); got != 1 {
		t.Errorf("index after natural end = %d; want 1", got)
	}
	if dev.count() != 2 {
		t.Fatalf("device plays = %d; want 2 (auto-advance)", dev.count())
	}
	if got := dev.at(1).offset; got != 0 {
		t.Errorf("next segment offset = %v; want 0", got)
	}
	if got := tts.lastText(); got != "Second sentence." {
		t.Errorf("auto-advance synthesized %q", got)
	}

	// Finishing the last segment stops without wrapping around.
	dev.finish(1)
	if got := r.Index(); got != 2 {
		t.Errorf("index after last segment = %d; want 2", got)
	}
	if dev.count() != 2 {
		t.Errorf("device plays = %d; want 2", dev.count())
	}
	if r.Playing() {
		t.Error("player should be idle after the last segment")
	}
}

func TestReaderPauseThenResume(t *testing.T) {
	now := time.Unix(3000, 0)
	clock := func() time.Time { return now }
	dev := &fakeDevice{}
	r := newReader(dev, &countingTTS{}, clock)
	r.SetSegments(readerSegs())

	if err := r.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Second)
	r.Pause()

	if r.Playing() {
		t.Error("paused player reports playing")
	}
	if !dev.at(0).stopped {
		t.Error("pause must stop the device playback")
	}

	// The backend reports completion as a side effect of the stop.
	// The pause flag keeps this from advancing to the next segment.
	dev.finish(0)
	if got := r.Index(); got != 0 {
		t.Errorf("index advanced on pause completion: %d", got)
	}
	if dev.count() != 1 {
		t.Errorf("device plays = %d; want 1", dev.count())
	}

	if err := r.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := dev.at(1).offset; got != 2*time.Second {
		t.Errorf("resume offset = %v; want 2s", got)
	}
}

func TestReaderLanguageSwitchKeepsOffset(t *testing.T) {
	now := time.Unix(3000, 0)
	clock := func() time.Time { return now }
	dev := &fakeDevice{}
	tts := &countingTTS{}
	r := newReader(dev, tts, clock)
	r.SetSegments(readerSegs())

	if err := r.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Second)
	if err := r.SwitchLanguage(context.Background(), Translation); err != nil {
		t.Fatal(err)
	}

	if dev.count() != 2 {
		t.Fatalf("device plays = %d; want 2", dev.count())
	}
	if !dev.at(0).stopped {
		t.Error("switch must stop the original-language playback")
	}
	if got := dev.at(1).offset; got != time.Second {
		t.Errorf("switched offset = %v; want 1s", got)
	}
	if got := tts.lastText(); got != "Première phrase." {
		t.Errorf("switch synthesized %q; want the translation", got)
	}
	if !r.Playing() {
		t.Error("switch mid-play should keep playing")
	}
}

func TestOutputExclusive(t *testing.T) {
	dev := &fakeDevice{}
	out := NewOutput(dev)
	tts := &countingTTS{}
	p := NewPlayer(out, nil, testGW(), tts, "Kore")
	r := NewReaderPlayer(out, p, nil)
	r.SetSegments(readerSegs())

	ctx := context.Background()
	if err := p.Play(ctx, "a quote", "q1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Play(ctx); err != nil {
		t.Fatal(err)
	}

	if !dev.at(0).stopped {
		t.Error("reader playback must preempt the quote playback")
	}
	if got := p.ActiveID(); got != "" {
		t.Errorf("preempted player still active: %q", got)
	}
	if !r.Playing() {
		t.Error("reader should hold the output")
	}
}

func podcastFixture(audioBytes int) *analysis.Podcast {
	return &analysis.Podcast{
		Title: "Test Cast",
		Script: []analysis.PodcastLine{
			{Speaker: "Host", Text: "aaaa"},
			{Speaker: "Guest", Text: "bbbbbbbbbbbb"},
		},
		Audio: make([]byte, audioBytes),
	}
}

func TestPodcastLineTimeline(t *testing.T) {
	// 48000 bytes of 24 kHz mono PCM is exactly one second.
	p := NewPodcastPlayer(NewOutput(&fakeDevice{}), podcastFixture(48000), nil)

	// 4 of 16 characters: first line ends at 250 ms.
	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{249 * time.Millisecond, 0},
		{250 * time.Millisecond, 1},
		{999 * time.Millisecond, 1},
		{5 * time.Second, 1},
	}
	for _, tc := range cases {
		if got := p.ActiveLine(tc.elapsed); got != tc.want {
			t.Errorf("ActiveLine(%v) = %d; want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestPodcastPauseResume(t *testing.T) {
	now := time.Unix(4000, 0)
	clock := func() time.Time { return now }
	dev := &fakeDevice{}
	p := NewPodcastPlayer(NewOutput(dev), podcastFixture(48000), clock)

	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	now = now.Add(400 * time.Millisecond)
	p.Pause()

	// Completion fired by the stop must not rewind the position.
	dev.finish(0)
	if got := p.Elapsed(); got != 400*time.Millisecond {
		t.Errorf("elapsed after pause = %v; want 400ms", got)
	}

	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	if got := dev.at(1).offset; got != 400*time.Millisecond {
		t.Errorf("resume offset = %v; want 400ms", got)
	}
}

func TestPodcastNaturalEndRewinds(t *testing.T) {
	dev := &fakeDevice{}
	p := NewPodcastPlayer(NewOutput(dev), podcastFixture(48000), nil)

	if err := p.Play(); err != nil {
		t.Fatal(err)
	}
	dev.finish(0)
	if p.Playing() {
		t.Error("player should be idle after natural end")
	}
	if got := p.Elapsed(); got != 0 {
		t.Errorf("elapsed after natural end = %v; want 0", got)
	}
}

func TestPodcastWithoutAudio(t *testing.T) {
	pod := podcastFixture(0)
	pod.Audio = nil
	p := NewPodcastPlayer(NewOutput(&fakeDevice{}), pod, nil)
	if err := p.Play(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("err = %v; want ErrNoAudio", err)
	}
}
