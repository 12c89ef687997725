package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rampellisaieshwar/GravityEdits/internal/edl"
)

// ErrEmptyReply is returned when a chat backend answers with nothing.
var ErrEmptyReply = errors.New("chat backend returned an empty reply")

// ChatRequest carries a free-text query and the current project snapshot.
type ChatRequest struct {
	Query       string       `json:"query"`
	ProjectName string       `json:"project_name,omitempty"`
	APIKey      string       `json:"api_key,omitempty"`
	State       *edl.Project `json:"current_state,omitempty"`
}

// ChatClient returns free text that may contain one tool-call statement.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// ServiceChat is the chat service backend.
type ServiceChat struct {
	c *client
}

func NewServiceChat(opts Options) *ServiceChat {
	return &ServiceChat{c: newClient("chat", opts)}
}

func (s *ServiceChat) Chat(ctx context.Context, req ChatRequest) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	if err := s.c.doJSON(ctx, http.MethodPost, "/chat/", req, &resp); err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	if strings.TrimSpace(resp.Response) == "" {
		return "", ErrEmptyReply
	}
	return resp.Response, nil
}

const chatSystemPrompt = `You are the editing assistant of a video timeline editor.
Answer briefly. When the user asks for an edit, include exactly one call from this list inside a
fenced block that opens with three backticks and tool_code. Calls outside that block are ignored.
  gravity_ai.edit_transcript(clip_id, new_transcript)
  gravity_ai.cut_clip(clip_id)
  gravity_ai.keep_clip(clip_id)
  gravity_ai.add_text(content, start_time, duration, style)
  gravity_ai.split_clip(clip_id, time)
  gravity_ai.remove_segment(clip_id, start, end)
  gravity_ai.remove_word(clip_id, word)
  gravity_ai.undo_action()
Times are in seconds of the clip's source media. Styles: pop, slide_up, typewriter, fade.`

// OpenAIChatConfig configures the direct LLM backend.
type OpenAIChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIChat asks an OpenAI-compatible model directly instead of going
// through the chat service.
type OpenAIChat struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIChat(cfg OpenAIChatConfig) *OpenAIChat {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &OpenAIChat{client: openai.NewClient(opts...), model: model, timeout: timeout}
}

func (o *OpenAIChat) Chat(ctx context.Context, req ChatRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	user := req.Query
	if req.State != nil {
		state, err := json.Marshal(req.State)
		if err != nil {
			return "", fmt.Errorf("marshal project state: %w", err)
		}
		user = fmt.Sprintf("Project %q:\n%s\n\nRequest: %s", req.State.Name, state, req.Query)
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(chatSystemPrompt),
			openai.UserMessage(user),
		},
		Model:       o.model,
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: openai chat: %v", ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
