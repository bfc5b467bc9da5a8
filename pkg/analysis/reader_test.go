package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func readyPipeline(t *testing.T, stub *stubCapability, window int) *Pipeline {
	t.Helper()
	cfg := testConfig()
	cfg.ReaderWindow = window
	p := New(stub, nil, nil, testGateway(), cfg, nil)
	if err := p.Start(context.Background(), sourceText(40000)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, p)
	return p
}

func TestReaderCursorMonotonic(t *testing.T) {
	stub := newStub()
	p := readyPipeline(t, stub, 15000)

	// Three successful windows over 40000 chars: 15000, 30000, 40000.
	wantCursors := []int{15000, 30000, 40000}
	for i, want := range wantCursors {
		segs, err := p.LoadMoreReader(context.Background())
		if err != nil {
			t.Fatalf("LoadMoreReader %d: %v", i+1, err)
		}
		if len(segs) == 0 {
			t.Fatalf("call %d returned no segments", i+1)
		}
		if got := p.ReaderCursor(); got != want {
			t.Errorf("cursor after call %d = %d; want %d", i+1, got, want)
		}
	}

	// A fourth call signals end-of-book without mutating anything.
	before := p.Snapshot()
	_, err := p.LoadMoreReader(context.Background())
	if !errors.Is(err, ErrEndOfBook) {
		t.Fatalf("err = %v; want ErrEndOfBook", err)
	}
	if got := p.ReaderCursor(); got != 40000 {
		t.Errorf("cursor moved on end-of-book: %d", got)
	}
	if after := p.Snapshot(); len(after.Reader) != len(before.Reader) {
		t.Error("reader facet mutated on end-of-book")
	}
}

func TestLoadMoreAppends(t *testing.T) {
	stub := newStub()
	p := readyPipeline(t, stub, 15000)

	if _, err := p.LoadMoreReader(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := p.LoadMoreReader(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(p.Snapshot().Reader); got != 2 {
		t.Errorf("reader segments = %d; want 2 (appended)", got)
	}
}

func TestLoadMoreFailureLeavesStateUntouched(t *testing.T) {
	stub := newStub()
	p := readyPipeline(t, stub, 15000)
	stub.fail["reader"] = errors.New("boom")

	_, err := p.LoadMoreReader(context.Background())
	if err == nil {
		t.Fatal("want error")
	}
	if got := p.ReaderCursor(); got != 0 {
		t.Errorf("cursor advanced on failure: %d", got)
	}
	if len(p.Snapshot().Reader) != 0 {
		t.Error("reader facet mutated on failure")
	}
}

func TestJumpToChapterReplaces(t *testing.T) {
	stub := newStub()
	p := readyPipeline(t, stub, 15000)

	if _, err := p.LoadMoreReader(context.Background()); err != nil {
		t.Fatal(err)
	}

	// "Chapter One" appears verbatim at offset 0 of the test source.
	segs, err := p.JumpToChapter(context.Background(), 0)
	if err != nil {
		t.Fatalf("JumpToChapter: %v", err)
	}
	if got := len(p.Snapshot().Reader); got != len(segs) {
		t.Errorf("jump must replace, not append: %d segments", got)
	}
	if got := p.ReaderCursor(); got != 15000 {
		t.Errorf("cursor = %d; want chapter offset + window = 15000", got)
	}

	if _, err := p.JumpToChapter(context.Background(), 99); err == nil {
		t.Error("out-of-range chapter: want error")
	}
}

func TestChapterOffset(t *testing.T) {
	source := strings.Repeat("x", 300) + "The Middle Part" + strings.Repeat("y", 300)

	if got := chapterOffset(source, "The Middle Part", 5, 10); got != 300 {
		t.Errorf("literal match offset = %d; want 300", got)
	}
	// Title absent: proportional fallback index/total of the length.
	if got := chapterOffset(source, "Missing Title", 3, 10); got != 3*len(source)/10 {
		t.Errorf("fallback offset = %d; want %d", got, 3*len(source)/10)
	}
	if got := chapterOffset(source, "  ", 0, 4); got != 0 {
		t.Errorf("blank title offset = %d; want 0", got)
	}
}
