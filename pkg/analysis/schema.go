package analysis

import "github.com/google/jsonschema-go/jsonschema"

// Facet response schemas, derived from the facet types once at startup.
// The capability is contracted to return JSON conforming to these shapes.
var (
	summarySchema    = mustSchema[Summary]()
	quotesSchema     = mustSchema[quoteList]()
	vocabSchema      = mustSchema[vocabList]()
	quizSchema       = mustSchema[quizList]()
	actionPlanSchema = mustSchema[actionList]()
	readerSchema     = mustSchema[segmentList]()
	reviewSchema     = mustSchema[BookReview]()
	podcastSchema    = mustSchema[podcastScript]()
)

// List facets are wrapped in an object: the capability's structured output
// is more reliable with an object root than a bare array.
type quoteList struct {
	Quotes []Quote `json:"quotes"`
}

type vocabList struct {
	Vocab []VocabWord `json:"vocab"`
}

type quizList struct {
	Questions []QuizQuestion `json:"questions"`
}

type actionList struct {
	Items []ActionItem `json:"items"`
}

type segmentList struct {
	Segments []ReaderSegment `json:"segments"`
}

type podcastScript struct {
	Title  string        `json:"title"`
	Script []PodcastLine `json:"script"`
}

func mustSchema[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(err)
	}
	return s
}
