package gen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

var _ TextGenerator = (*OpenAI)(nil)

// OpenAI implements TextGenerator using the OpenAI chat completions API
// with json_schema structured outputs. It covers only text generation;
// speech and live sessions stay on the Gemini backend.
type OpenAI struct {
	Client *openai.Client

	Model string
}

// GenerateJSON implements TextGenerator.
func (g *OpenAI) GenerateJSON(ctx context.Context, req GenerateRequest, out any) error {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.Model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Temperature))
	}
	if req.Schema != nil {
		schemaJSON, err := json.Marshal(req.Schema)
		if err != nil {
			return fmt.Errorf("gen: marshal schema: %w", err)
		}
		var schema map[string]any
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			return fmt.Errorf("gen: marshal schema: %w", err)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: schema,
					Strict: param.NewOpt(true),
				},
			},
		}
	}

	resp, err := g.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: no choices", ErrBadResponse)
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return fmt.Errorf("%w: refused: %s", ErrBadResponse, choice.Message.Refusal)
	}
	if choice.FinishReason != "stop" {
		return fmt.Errorf("%w: finish reason %s", ErrBadResponse, choice.FinishReason)
	}
	if err := unmarshalJSON([]byte(choice.Message.Content), out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}
