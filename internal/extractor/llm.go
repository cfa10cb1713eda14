package extractor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const timeLayout = "2006-01-02T15:04:05"

// LLMExtractor parses calendar events with an OpenAI-compatible chat
// completion endpoint (DeepSeek by default, see config).
type LLMExtractor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
	now         func() time.Time
}

func NewLLMExtractor(apiKey, baseURL, model string, maxTokens int, temperature float64, logger *zap.Logger) *LLMExtractor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLMExtractor{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
		now:         time.Now,
	}
}

type llmResponse struct {
	Result      bool   `json:"result"`
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Comment     string `json:"comment"`
}

// upcomingCalendar renders the next two weeks with relative weekday
// labels so the model resolves phrases like "next Tuesday" against the
// right dates.
func (e *LLMExtractor) upcomingCalendar() string {
	now := e.now()
	daysFromMonday := (int(now.Weekday()) + 6) % 7

	var lines []string
	for i := 0; i < 14; i++ {
		day := now.AddDate(0, 0, i)
		var label string
		switch {
		case i == 0:
			label = day.Weekday().String() + " (today)"
		case (daysFromMonday+i)/7 == 0:
			label = "this " + day.Weekday().String()
		default:
			label = "next " + day.Weekday().String()
		}
		lines = append(lines, day.Format("02 January")+" — "+label)
	}
	return strings.Join(lines, "\n")
}

func (e *LLMExtractor) prompt(text string) string {
	now := e.now()
	return fmt.Sprintf(`You extract calendar events from chat messages. The message may be a
forwarded conversation with lines tagged "<sender>: <text>"; the person
marked "(calendar owner)" is whose calendar the event goes into.

Current date and time: %s
Upcoming dates for reference:
%s

Respond with a single JSON object:
{
  "result": true or false,
  "title": "short event title",
  "start_time": "ISO-8601 local timestamp, e.g. 2024-03-20T15:00:00",
  "end_time": "ISO-8601 local timestamp",
  "description": "details worth keeping, or empty",
  "location": "place, or empty",
  "comment": "when result is false, a short explanation of what is missing"
}

Rules:
- If the date or time cannot be determined, set result to false and
  explain in comment.
- If no end time is given, assume the event lasts one hour.
- For multi-day events use the start of the first day and the end of
  the last day.
- Timestamps are local time, no timezone offset.

Message:
%s`, now.Format(timeLayout), e.upcomingCalendar(), text)
}

func (e *LLMExtractor) Extract(ctx context.Context, text, imagePath string) (*Result, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: e.prompt(text)},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
				},
			},
		}
	} else {
		msg.Content = e.prompt(text)
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    []openai.ChatCompletionMessage{msg},
		MaxTokens:   e.maxTokens,
		Temperature: float32(e.temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	result, err := parseResponse(resp.Choices[0].Message.Content, resp.Usage.TotalTokens)
	if err != nil {
		e.logger.Error("failed to parse extraction response",
			zap.Error(err),
			zap.String("response", resp.Choices[0].Message.Content))
		return nil, err
	}
	return result, nil
}

// parseResponse decodes the model output, tolerating a markdown code
// fence around the JSON.
func parseResponse(raw string, tokensUsed int) (*Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var parsed llmResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	return &Result{
		OK:            parsed.Result,
		FailureReason: parsed.Comment,
		Title:         parsed.Title,
		StartTime:     parsed.StartTime,
		EndTime:       parsed.EndTime,
		Description:   parsed.Description,
		Location:      parsed.Location,
		TokensUsed:    tokensUsed,
	}, nil
}
