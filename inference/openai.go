package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const extractSystemPrompt = `You extract real-estate purchase intent from a customer message.
Respond with a single JSON object and nothing else. Allowed keys:
"goal" (investment|living|residency), "budget_min", "budget_max"
(plain integer strings), "property_type", "location".
Omit any key you are not confident about. Respond {} if nothing is found.`

const answerSystemPrompt = `You are a concise, friendly assistant of a real-estate agency.
Answer the customer's question in at most three sentences, in the %s language.
Never invent prices or legal advice; suggest a consultation when unsure.`

var languageNames = map[string]string{
	"en": "English",
	"fa": "Persian",
	"ar": "Arabic",
	"ru": "Russian",
}

// OpenAI implements Client on top of the OpenAI chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (o *OpenAI) ExtractSlots(ctx context.Context, text string) (map[string]string, error) {
	content, err := o.complete(ctx, extractSystemPrompt, text)
	if err != nil {
		return nil, err
	}

	content = stripCodeFence(content)
	var slots map[string]string
	if err := json.Unmarshal([]byte(content), &slots); err != nil {
		return nil, fmt.Errorf("inference: malformed extraction payload: %w", err)
	}
	return slots, nil
}

func (o *OpenAI) Answer(ctx context.Context, question, language string) (string, error) {
	name, ok := languageNames[language]
	if !ok {
		name = "English"
	}
	return o.complete(ctx, fmt.Sprintf(answerSystemPrompt, name), question)
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("inference: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
