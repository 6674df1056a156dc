// Package ai wraps the Ark chat model behind the text-generation capability
// consumed by the companion orchestrator.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/config"
	"github.com/xiaoyue/companion/internal/model/profile"
)

// ErrEmptyCompletion marks a completion with no usable text. The caller
// treats it like any other provider failure.
var ErrEmptyCompletion = errors.New("model returned empty completion")

// Service runs the prompt→model chain for one turn.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	timeout   time.Duration
	log       zerolog.Logger
}

// NewService creates the AI service. A misconfigured model is fatal here,
// at construction time, rather than surfacing per turn.
func NewService(ctx context.Context, cfg config.AIConfig, log zerolog.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
		timeout:   timeout,
		log:       log.With().Str("component", "ai").Logger(),
	}, nil
}

// Generate produces the assistant reply for the given prompt and bounded
// history. The call is cut off by the configured timeout; a timeout is an
// ordinary provider failure for the caller.
func (s *Service) Generate(ctx context.Context, systemPrompt string, history []profile.Message, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := map[string]any{
		"system":  systemPrompt,
		"history": toSchemaMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run chat chain: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", ErrEmptyCompletion
	}

	s.log.Debug().Int("length", len(reply)).Msg("生成回复完成")
	return reply, nil
}

func toSchemaMessages(history []profile.Message) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case profile.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case profile.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return messages
}
