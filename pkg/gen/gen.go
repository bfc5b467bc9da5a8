// Package gen abstracts the hosted generation capability: structured JSON
// generation, speech synthesis, live bidirectional audio sessions, and
// stateful chat. The Gemini implementation is the primary backend; an
// OpenAI implementation covers structured text generation for deployments
// that prefer it.
package gen

import (
	"context"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrBadResponse indicates the capability returned output that does not
// conform to the requested schema. It is a terminal error: retrying the
// same request is not expected to help.
var ErrBadResponse = errors.New("gen: non-conforming response")

// GenerateRequest describes one structured generation call.
type GenerateRequest struct {
	// Prompt is the user-facing prompt text.
	Prompt string

	// Schema is the declarative shape the response must conform to.
	Schema *jsonschema.Schema

	// SystemInstruction is optional context prepended to the call.
	SystemInstruction string

	// Temperature overrides the model default when non-nil.
	Temperature *float32
}

// TextGenerator produces structured JSON conforming to a schema.
type TextGenerator interface {
	// GenerateJSON runs one generation call and decodes the response
	// into out. A response that cannot be decoded into the schema shape
	// returns an error wrapping ErrBadResponse.
	GenerateJSON(ctx context.Context, req GenerateRequest, out any) error
}

// SpeakRequest describes one speech synthesis call.
type SpeakRequest struct {
	// Text is the content to synthesize.
	Text string

	// Voice names the prebuilt voice for single-speaker synthesis.
	Voice string

	// SpeakerVoices maps script speaker labels to voices for
	// multi-speaker synthesis. When set, Voice is ignored.
	SpeakerVoices map[string]string
}

// SpeechSynthesizer converts text to raw 24 kHz mono 16-bit PCM.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req SpeakRequest) ([]byte, error)
}

// LiveConfig configures a bidirectional live audio session.
type LiveConfig struct {
	// SystemInstruction primes the conversation.
	SystemInstruction string

	// Voice names the prebuilt voice for model speech.
	Voice string
}

// LiveEvent is one inbound message on a live session.
type LiveEvent struct {
	// Audio is a raw 24 kHz mono PCM fragment, nil when the event
	// carries no audio.
	Audio []byte

	// Interrupted signals the model's in-flight speech was cut off by
	// user speech; scheduled playback should be discarded.
	Interrupted bool

	// TurnComplete signals the model finished its turn.
	TurnComplete bool
}

// LiveSession is an open bidirectional audio stream.
type LiveSession interface {
	// SendAudio transmits one captured PCM frame tagged with its MIME
	// type (e.g. "audio/pcm;rate=16000").
	SendAudio(frame []byte, mimeType string) error

	// Receive blocks for the next inbound event. It returns an error
	// when the stream closes.
	Receive() (LiveEvent, error)

	// Close tears down the stream. Idempotent.
	Close() error
}

// LiveDialer opens live sessions.
type LiveDialer interface {
	DialLive(ctx context.Context, cfg LiveConfig) (LiveSession, error)
}

// Chat is a stateful multi-turn text conversation.
type Chat interface {
	Send(ctx context.Context, text string) (string, error)
}

// ChatStarter opens chat sessions scoped to a fixed system context.
type ChatStarter interface {
	StartChat(ctx context.Context, systemContext string) (Chat, error)
}
