package analysis

import (
	"context"
	"fmt"
	"strings"
)

// LoadMoreReader generates the next bilingual reader page: one fixed-size
// character window starting at the current cursor. Returned segments are
// appended to the reader facet and the cursor advances by the window size,
// clamped to the source length. When the remaining text is empty or
// whitespace only, it returns ErrEndOfBook without mutating any state.
func (p *Pipeline) LoadMoreReader(ctx context.Context) ([]ReaderSegment, error) {
	session, err := p.readySession()
	if err != nil {
		return nil, err
	}
	mu := p.facetMu[FacetReader]
	mu.Lock()
	defer mu.Unlock()

	p.mu.Lock()
	source, cursor := p.source, p.cursor
	p.mu.Unlock()

	if trimmedRemainder(source, cursor) {
		return nil, ErrEndOfBook
	}

	window := p.cfg.ReaderWindow
	segs, err := p.generateSegments(ctx, chunkAt(source, cursor, window))
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.sessionID != session {
		p.mu.Unlock()
		return nil, ErrNotReady
	}
	p.result.Reader = append(p.result.Reader, segs...)
	p.cursor = clamp(cursor+window, len(source))
	p.mu.Unlock()
	return segs, nil
}

// JumpToChapter generates reader content starting at a specific chapter.
// The chapter offset is located by a literal substring search for the
// chapter title; when the title does not appear verbatim, a proportional
// estimate (chapterIndex/totalChapters of the source length) is used.
// The returned segments replace the reader facet and the cursor snaps to
// the chapter offset plus the window size.
func (p *Pipeline) JumpToChapter(ctx context.Context, chapterIndex int) ([]ReaderSegment, error) {
	session, err := p.readySession()
	if err != nil {
		return nil, err
	}
	mu := p.facetMu[FacetReader]
	mu.Lock()
	defer mu.Unlock()

	p.mu.Lock()
	source := p.source
	var chapters []ChapterSummary
	if p.result.Summary != nil {
		chapters = p.result.Summary.Chapters
	}
	p.mu.Unlock()

	if chapterIndex < 0 || chapterIndex >= len(chapters) {
		return nil, fmt.Errorf("analysis: chapter index %d out of range [0,%d)", chapterIndex, len(chapters))
	}

	offset := chapterOffset(source, chapters[chapterIndex].Title, chapterIndex, len(chapters))
	window := p.cfg.ReaderWindow
	segs, err := p.generateSegments(ctx, chunkAt(source, offset, window))
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.sessionID != session {
		p.mu.Unlock()
		return nil, ErrNotReady
	}
	p.result.Reader = segs
	p.cursor = clamp(offset+window, len(source))
	p.mu.Unlock()
	return segs, nil
}

// ReaderCursor returns the current byte offset into the source text.
func (p *Pipeline) ReaderCursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

func (p *Pipeline) generateSegments(ctx context.Context, chunk string) ([]ReaderSegment, error) {
	var list segmentList
	if err := p.generateJSON(ctx, "reader", readerPrompt(chunk), readerSchema, &list); err != nil {
		return nil, fmt.Errorf("reader stage: %w", err)
	}
	return list.Segments, nil
}

// chapterOffset locates a chapter's byte offset in the source text.
// Literal title match wins; otherwise the proportional fallback applies.
func chapterOffset(source, title string, index, total int) int {
	if title = strings.TrimSpace(title); title != "" {
		if off := strings.Index(source, title); off >= 0 {
			return off
		}
	}
	if total <= 0 {
		return 0
	}
	return index * len(source) / total
}

func chunkAt(source string, offset, window int) string {
	offset = clamp(offset, len(source))
	return source[offset:clamp(offset+window, len(source))]
}

func clamp(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}
