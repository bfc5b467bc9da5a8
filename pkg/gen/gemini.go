package gen

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"
)

var (
	_ TextGenerator     = (*Gemini)(nil)
	_ SpeechSynthesizer = (*Gemini)(nil)
	_ LiveDialer        = (*Gemini)(nil)
	_ ChatStarter       = (*Gemini)(nil)
)

// Gemini implements the full capability surface using the Gemini API.
type Gemini struct {
	Client *genai.Client

	// Model names should not start with "models/".
	TextModel   string
	SpeechModel string
	LiveModel   string
	ChatModel   string
}

// GenerateJSON implements TextGenerator.
func (g *Gemini) GenerateJSON(ctx context.Context, req GenerateRequest, out any) error {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   convSchema(req.Schema),
		Temperature:      req.Temperature,
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.SystemInstruction)},
		}
	}

	resp, err := g.Client.Models.GenerateContent(ctx, g.TextModel, genai.Text(req.Prompt), cfg)
	if err != nil {
		return unwrapAPIError(err)
	}
	text, err := candidateText(resp)
	if err != nil {
		return err
	}
	if err := unmarshalJSON([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

// Synthesize implements SpeechSynthesizer. The returned bytes are raw
// 24 kHz mono 16-bit little-endian PCM.
func (g *Gemini) Synthesize(ctx context.Context, req SpeakRequest) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig:       speechConfig(req),
	}

	resp, err := g.Client.Models.GenerateContent(ctx, g.SpeechModel, genai.Text(req.Text), cfg)
	if err != nil {
		return nil, unwrapAPIError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no candidates", ErrBadResponse)
	}

	var buf bytes.Buffer
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.InlineData != nil {
			buf.Write(p.InlineData.Data)
		}
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: empty audio payload", ErrBadResponse)
	}
	return buf.Bytes(), nil
}

func speechConfig(req SpeakRequest) *genai.SpeechConfig {
	if len(req.SpeakerVoices) > 0 {
		speakers := make([]*genai.SpeakerVoiceConfig, 0, len(req.SpeakerVoices))
		for speaker, voice := range req.SpeakerVoices {
			speakers = append(speakers, &genai.SpeakerVoiceConfig{
				Speaker:     speaker,
				VoiceConfig: voiceConfig(voice),
			})
		}
		return &genai.SpeechConfig{
			MultiSpeakerVoiceConfig: &genai.MultiSpeakerVoiceConfig{
				SpeakerVoiceConfigs: speakers,
			},
		}
	}
	return &genai.SpeechConfig{VoiceConfig: voiceConfig(req.Voice)}
}

func voiceConfig(voice string) *genai.VoiceConfig {
	return &genai.VoiceConfig{
		PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
	}
}

// DialLive implements LiveDialer.
func (g *Gemini) DialLive(ctx context.Context, cfg LiveConfig) (LiveSession, error) {
	lc := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig:       &genai.SpeechConfig{VoiceConfig: voiceConfig(cfg.Voice)},
	}
	if cfg.SystemInstruction != "" {
		lc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(cfg.SystemInstruction)},
		}
	}

	session, err := g.Client.Live.Connect(ctx, g.LiveModel, lc)
	if err != nil {
		return nil, unwrapAPIError(err)
	}
	return &geminiLive{session: session}, nil
}

type geminiLive struct {
	session *genai.Session

	closeOnce sync.Once
	closeErr  error
}

func (l *geminiLive) SendAudio(frame []byte, mimeType string) error {
	return l.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: frame, MIMEType: mimeType},
	})
}

func (l *geminiLive) Receive() (LiveEvent, error) {
	msg, err := l.session.Receive()
	if err != nil {
		return LiveEvent{}, err
	}

	var ev LiveEvent
	if sc := msg.ServerContent; sc != nil {
		ev.Interrupted = sc.Interrupted
		ev.TurnComplete = sc.TurnComplete
		if sc.ModelTurn != nil {
			var buf bytes.Buffer
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData != nil {
					buf.Write(p.InlineData.Data)
				}
			}
			if buf.Len() > 0 {
				ev.Audio = buf.Bytes()
			}
		}
	}
	return ev, nil
}

func (l *geminiLive) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.session.Close()
	})
	return l.closeErr
}

// StartChat implements ChatStarter. The system context (typically the book
// text truncated to a bounded prefix) is fixed for the session lifetime.
func (g *Gemini) StartChat(ctx context.Context, systemContext string) (Chat, error) {
	cfg := &genai.GenerateContentConfig{}
	if systemContext != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemContext)},
		}
	}
	chat, err := g.Client.Chats.Create(ctx, g.ChatModel, cfg, nil)
	if err != nil {
		return nil, unwrapAPIError(err)
	}
	return &geminiChat{chat: chat}, nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) Send(ctx context.Context, text string) (string, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", unwrapAPIError(err)
	}
	return candidateText(resp)
}

// candidateText concatenates the text parts of the first candidate,
// validating the finish reason.
func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates", ErrBadResponse)
	}
	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonStop, genai.FinishReasonUnspecified, "":
	case genai.FinishReasonMaxTokens:
		return "", fmt.Errorf("%w: truncated at max tokens", ErrBadResponse)
	default:
		return "", fmt.Errorf("%w: finish reason %s", ErrBadResponse, cand.FinishReason)
	}

	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// unwrapAPIError strips the gax wrapper so callers see the underlying
// googleapi error (status code intact for transient classification).
func unwrapAPIError(err error) error {
	if e, ok := err.(*apierror.APIError); ok {
		return e.Unwrap()
	}
	return err
}
