package convo

import (
	"context"
	"fmt"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
)

// Config tunes the completion request.
type Config struct {
	Model           string
	VisionModel     string
	MaxTokens       int
	VisionMaxTokens int
	Temperature     float64
}

// Manager assembles completion requests from the history. It does not retry
// on failure; the caller decides whether to record an error turn.
type Manager struct {
	client  openai.Client
	history *History
	cfg     Config
}

func NewManager(client openai.Client, history *History, cfg Config) *Manager {
	return &Manager{client: client, history: history, cfg: cfg}
}

// History exposes the managed history to the session loop.
func (m *Manager) History() *History { return m.history }

// AppendUserTurn records one user turn, optionally with an attached image.
func (m *Manager) AppendUserTurn(text, imageURL string) {
	m.history.AppendUser(text, imageURL)
}

// AppendErrorTurn records a failed round as an assistant error turn so the
// user can hear something went wrong; error turns are excluded from later
// completion requests.
func (m *Manager) AppendErrorTurn(text string) {
	m.history.AppendError(text)
}

// RequestCompletion trims the history, runs one blocking completion round
// trip and records the assistant's reply. The vision-capable model is
// selected automatically when any turn carries an image.
func (m *Manager) RequestCompletion(ctx context.Context) (string, error) {
	m.history.Trim()

	vision := m.history.HasImages()
	model := m.cfg.Model
	maxTokens := m.cfg.MaxTokens
	if vision {
		model = m.cfg.VisionModel
		maxTokens = m.cfg.VisionMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: m.buildMessages(),
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	if m.cfg.Temperature > 0 {
		params.Temperature = openai.Float(m.cfg.Temperature)
	}

	log.Debug("Requesting completion", "model", model, "messages", m.history.Len(), "vision", vision)

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}

	m.history.AppendAssistant(content)
	return content, nil
}

func (m *Manager) buildMessages() []openai.ChatCompletionMessageParamUnion {
	msgs := m.history.Messages()
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))

	for _, msg := range msgs {
		if msg.Err {
			// local error turns are display-only
			continue
		}
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Text))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text))
		case RoleUser:
			if msg.ImageURL == "" {
				out = append(out, openai.UserMessage(msg.Text))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(msg.Text),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: msg.ImageURL,
				}),
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}
