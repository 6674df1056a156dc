// Package companion sequences one conversation turn end-to-end: persist the
// user message, classify the scene, generate (or fall back), attach a scene
// photo when asked for, and persist the reply.
package companion

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/xiaoyue/companion/internal/analysis/scene"
	"github.com/xiaoyue/companion/internal/metrics"
	"github.com/xiaoyue/companion/internal/model/profile"
	"github.com/xiaoyue/companion/internal/store"
)

var (
	ErrUserIDRequired  = errors.New("user id is required")
	ErrMessageRequired = errors.New("message is required")
)

// GenericApology is the reply of last resort, shown only when the turn
// itself blows up. Provider failures never reach it.
const GenericApology = fallbackApology

// TextGenerator is the external text-generation capability.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt string, history []profile.Message, userMessage string) (string, error)
}

// ImageGenerator is the external image-generation capability.
type ImageGenerator interface {
	Generate(ctx context.Context, scene, mood string) (string, error)
}

// TurnContext carries the optional task signals attached to a turn.
// Progress, when present, is a fraction in [0,1].
type TurnContext struct {
	TaskName string
	Progress *float64
}

// TurnResult is what one turn hands back to the caller.
type TurnResult struct {
	Reply    string           `json:"reply"`
	ImageRef string           `json:"imageRef,omitempty"`
	Scene    scene.Descriptor `json:"scene"`
	Fallback bool             `json:"fallback"`
}

// Config tunes the orchestrator.
type Config struct {
	// ContextWindow bounds how many stored messages feed generation.
	ContextWindow int
}

// Service is the companion orchestrator.
type Service struct {
	store    *store.Service
	textGen  TextGenerator  // nil disables generation, every turn falls back
	imageGen ImageGenerator // nil disables scene photos
	window   int
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// NewService wires the orchestrator. textGen and imageGen may be nil when
// the corresponding provider is not configured.
func NewService(profileStore *store.Service, textGen TextGenerator, imageGen ImageGenerator, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Service {
	window := cfg.ContextWindow
	if window <= 0 {
		window = 10
	}

	return &Service{
		store:    profileStore,
		textGen:  textGen,
		imageGen: imageGen,
		window:   window,
		log:      log.With().Str("component", "companion").Logger(),
		metrics:  m,
	}
}

// HandleTurn runs one user-message-in, assistant-reply-out cycle.
//
// The user message is persisted before generation is attempted, and the
// reply is persisted before the turn returns. Between the two there is no
// intermediate persisted state: a crash mid-turn can leave a user message
// without its paired reply, which is accepted and observable.
func (s *Service) HandleTurn(ctx context.Context, userID, userMessage string, turnCtx TurnContext) (*TurnResult, error) {
	start := time.Now()

	if userID == "" {
		s.countTurn("rejected")
		return nil, ErrUserIDRequired
	}
	if userMessage == "" {
		s.countTurn("rejected")
		return nil, ErrMessageRequired
	}

	s.store.AppendMessage(ctx, userID, profile.NewMessage(userID, profile.RoleUser, userMessage))

	prefs := s.store.GetProfile(ctx, userID).Preferences
	history := s.conversationWindow(ctx, userID, userMessage)

	progress := 0.0
	if turnCtx.Progress != nil {
		progress = *turnCtx.Progress
	}
	sc := scene.Classify(userMessage, progress)

	reply, usedFallback := s.generateReply(ctx, prefs, sc, history, userMessage, turnCtx)

	var imageRef string
	if sc.NeedsPhoto && s.imageGen != nil {
		ref, err := s.imageGen.Generate(ctx, string(sc.Type), string(sc.Mood))
		if err != nil {
			// 配图失败静默降级，本轮照常返回。
			s.log.Warn().Err(err).Str("scene", string(sc.Type)).Str("mood", string(sc.Mood)).Msg("配图生成失败，跳过图片")
			if s.metrics != nil {
				s.metrics.ProviderFailuresTotal.WithLabelValues("image").Inc()
			}
		} else {
			imageRef = ref
			if s.metrics != nil {
				s.metrics.ImagesGeneratedTotal.Inc()
			}
		}
	}

	s.store.AppendMessage(ctx, userID, profile.NewMessage(userID, profile.RoleAssistant, reply))

	outcome := "generated"
	if usedFallback {
		outcome = "fallback"
	}
	s.countTurn(outcome)
	if s.metrics != nil {
		s.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}

	s.log.Info().
		Str("userId", userID).
		Str("scene", string(sc.Type)+"-"+sc.SubType).
		Bool("fallback", usedFallback).
		Bool("photo", imageRef != "").
		Msg("对话轮次完成")

	return &TurnResult{
		Reply:    reply,
		ImageRef: imageRef,
		Scene:    sc,
		Fallback: usedFallback,
	}, nil
}

// UpdatePreferences merges the given preference fields for the user.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, patch profile.Preferences) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	s.store.UpdatePreferences(ctx, userID, patch)
	return nil
}

// History returns the most recent limit messages for the user.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]profile.Message, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return s.store.GetHistory(ctx, userID, limit), nil
}

// ClearHistory empties the user's conversation history.
func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	s.store.ClearHistory(ctx, userID)
	return nil
}

// Stats reports the read-only aggregate over the profile store.
func (s *Service) Stats() store.Stats {
	return s.store.Stats()
}

// conversationWindow loads the bounded history for generation, excluding
// the user message that was just appended (it travels as the query).
func (s *Service) conversationWindow(ctx context.Context, userID, userMessage string) []profile.Message {
	history := s.store.GetHistory(ctx, userID, s.window+1)
	if len(history) > 0 {
		last := history[len(history)-1]
		if last.Role == profile.RoleUser && last.Content == userMessage {
			history = history[:len(history)-1]
		}
	}
	if len(history) > s.window {
		history = history[len(history)-s.window:]
	}
	return history
}

func (s *Service) generateReply(ctx context.Context, prefs profile.Preferences, sc scene.Descriptor, history []profile.Message, userMessage string, turnCtx TurnContext) (string, bool) {
	if s.textGen == nil {
		return FallbackReply(turnCtx, userMessage), true
	}

	systemPrompt := buildSystemPrompt(prefs, sc)
	userPrompt := buildUserPrompt(turnCtx, userMessage, sc.NeedsPhoto)

	reply, err := s.textGen.Generate(ctx, systemPrompt, history, userPrompt)
	if err != nil {
		// 生成失败永远不向用户暴露，换成确定性的降级回应。
		s.log.Warn().Err(err).Msg("文本生成失败，使用降级回应")
		if s.metrics != nil {
			s.metrics.ProviderFailuresTotal.WithLabelValues("text").Inc()
		}
		return FallbackReply(turnCtx, userMessage), true
	}

	return reply, false
}

func (s *Service) countTurn(outcome string) {
	if s.metrics != nil {
		s.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	}
}
