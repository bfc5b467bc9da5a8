package analysis

// Summary is the top-level book summary facet.
type Summary struct {
	Title          string           `json:"title"`
	Author         string           `json:"author"`
	OverallSummary string           `json:"overallSummary"`
	Chapters       []ChapterSummary `json:"chapters"`
}

// ChapterSummary is one chapter entry in the summary facet.
type ChapterSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Quote is one notable quote with translation and selection rationale.
type Quote struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
	Reason      string `json:"reason"`
}

// VocabWord is one vocabulary entry drawn from the source text.
type VocabWord struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
	Example    string `json:"example"`
}

// QuizQuestion is one multiple-choice comprehension question.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answerIndex"`
	Explanation string   `json:"explanation"`
}

// ActionItem is one entry of the reader's action plan.
type ActionItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ReaderSegment is one bilingual reading unit: a slice of the original
// text paired with its translation.
type ReaderSegment struct {
	Original    string `json:"original"`
	Translation string `json:"translation"`
}

// BookReview is a stylized review of the book.
type BookReview struct {
	Style string `json:"style"`
	Body  string `json:"body"`
}

// PodcastLine is one scripted utterance attributed to a speaker.
type PodcastLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Podcast is a generated multi-speaker podcast. Audio is raw 24 kHz mono
// PCM and may be absent: the script is displayable without playback.
type Podcast struct {
	Title  string        `json:"title"`
	Script []PodcastLine `json:"script"`
	Audio  []byte        `json:"-"`
}

// Result is the analysis aggregate for one book session. Each facet is
// independently nil until its stage completes; stages may complete out of
// order. Merges are per-facet, never whole-object replacement.
type Result struct {
	Summary    *Summary        `json:"summary,omitempty"`
	Quotes     []Quote         `json:"quotes,omitempty"`
	Vocab      []VocabWord     `json:"vocab,omitempty"`
	Quiz       []QuizQuestion  `json:"quiz,omitempty"`
	ActionPlan []ActionItem    `json:"actionPlan,omitempty"`
	Reader     []ReaderSegment `json:"readerContent,omitempty"`
	Review     *BookReview     `json:"bookReview,omitempty"`
	Podcast    *Podcast        `json:"podcast,omitempty"`
}

// clone returns a copy of the aggregate with fresh slice headers, so
// callers can read a snapshot while pipeline stages keep merging.
func (r *Result) clone() Result {
	out := Result{}
	if r.Summary != nil {
		s := *r.Summary
		s.Chapters = append([]ChapterSummary(nil), r.Summary.Chapters...)
		out.Summary = &s
	}
	out.Quotes = append([]Quote(nil), r.Quotes...)
	out.Vocab = append([]VocabWord(nil), r.Vocab...)
	out.Quiz = append([]QuizQuestion(nil), r.Quiz...)
	out.ActionPlan = append([]ActionItem(nil), r.ActionPlan...)
	out.Reader = append([]ReaderSegment(nil), r.Reader...)
	if r.Review != nil {
		rv := *r.Review
		out.Review = &rv
	}
	if r.Podcast != nil {
		p := *r.Podcast
		p.Script = append([]PodcastLine(nil), r.Podcast.Script...)
		p.Audio = append([]byte(nil), r.Podcast.Audio...)
		out.Podcast = &p
	}
	return out
}

// Facet names one sub-result of the aggregate.
type Facet string

const (
	FacetSummary    Facet = "summary"
	FacetQuotes     Facet = "quotes"
	FacetVocab      Facet = "vocab"
	FacetQuiz       Facet = "quiz"
	FacetActionPlan Facet = "actionPlan"
	FacetReader     Facet = "readerContent"
	FacetReview     Facet = "bookReview"
	FacetPodcast    Facet = "podcast"
)
