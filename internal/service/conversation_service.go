package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/contract"
	"ollama-chat-be/internal/repository/memory"
	"ollama-chat-be/pkg/apperror"
	"ollama-chat-be/pkg/events"
	"ollama-chat-be/pkg/llm"
	"ollama-chat-be/pkg/store"
)

var actionPattern = regexp.MustCompile(`^\*.*\*$`)

// IConversationService owns every mutation of a session's conversation state.
type IConversationService interface {
	GetSession(ctx context.Context, sessionId string) *dto.SessionResponse
	SetCharacter(ctx context.Context, sessionId, key string) (string, error)
	Ask(ctx context.Context, sessionId, input string) (string, error)
	ProcessImage(ctx context.Context, sessionId, imagePath string) (string, string, error)
	Reset(ctx context.Context, sessionId string) error
	ChatModel(ctx context.Context, sessionId string) string
	CaptionModel(ctx context.Context, sessionId string) string
	SelectChatModel(ctx context.Context, sessionId, model string) error
	SelectCaptionModel(ctx context.Context, sessionId, model string) error
	SelectedCharacter(ctx context.Context, sessionId string) string
}

type conversationService struct {
	sessions       *memory.SessionRepository
	characters     contract.CharacterRepository
	backend        llm.Backend
	models         IModelService
	publisher      events.Publisher
	logger         logger.ILogger
	defaultChat    string
	defaultCaption string
	requestTimeout time.Duration
	temperature    float64
	maxTokens      int
}

type ConversationConfig struct {
	DefaultChatModel    string
	DefaultCaptionModel string
	RequestTimeout      time.Duration
	// Sampling settings sent with every chat and caption call
	Temperature float64
	MaxTokens   int
}

func NewConversationService(
	sessions *memory.SessionRepository,
	characters contract.CharacterRepository,
	backend llm.Backend,
	models IModelService,
	publisher events.Publisher,
	log logger.ILogger,
	cfg ConversationConfig,
) IConversationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &conversationService{
		sessions:       sessions,
		characters:     characters,
		backend:        backend,
		models:         models,
		publisher:      publisher,
		logger:         log,
		defaultChat:    cfg.DefaultChatModel,
		defaultCaption: cfg.DefaultCaptionModel,
		requestTimeout: cfg.RequestTimeout,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
	}
}

// session returns the live session for id, creating it on first use. A
// creation may push the table over capacity, which triggers a FIFO eviction.
func (s *conversationService) session(ctx context.Context, sessionId string) *store.Session {
	chat, caption := s.defaultChat, s.defaultCaption
	if _, ok := s.sessions.Get(sessionId); !ok {
		chat, caption = s.defaultModels(ctx)
	}
	sess, created := s.sessions.GetOrCreate(sessionId, func() *store.Session {
		return store.NewSession(sessionId, chat, caption)
	})
	if !created {
		return sess
	}

	s.logger.Debug("SESSION", "Session created", map[string]interface{}{"session_id": sessionId})
	if evicted := s.sessions.EvictIfOverCapacity(); len(evicted) > 0 {
		s.logger.Info("SESSION", "Evicted oldest sessions", map[string]interface{}{
			"count": len(evicted),
			"total": s.sessions.Count(),
		})
		event := events.BaseEvent{
			Type:       events.TypeSessionsEvicted,
			Data:       map[string]interface{}{"session_ids": evicted},
			OccurredAt: time.Now(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("SESSION", "Failed to publish eviction event", map[string]interface{}{"error": err.Error()})
		}
	}
	return sess
}

// defaultModels picks the first installed chat and caption models. The
// configured models are used only when the inventory offers none.
func (s *conversationService) defaultModels(ctx context.Context) (string, string) {
	chat, caption := s.defaultChat, s.defaultCaption
	if s.models == nil {
		return chat, caption
	}
	catalog, err := s.models.Catalog(ctx)
	if err != nil {
		return chat, caption
	}
	if len(catalog.ChatModels) > 0 {
		chat = catalog.ChatModels[0]
	}
	if len(catalog.CaptionModels) > 0 {
		caption = catalog.CaptionModels[0]
	}
	return chat, caption
}

func (s *conversationService) GetSession(ctx context.Context, sessionId string) *dto.SessionResponse {
	snap := s.session(ctx, sessionId).Snapshot()

	transcript := make([]dto.MessageDTO, 0, len(snap.Transcript))
	for _, m := range snap.Transcript {
		transcript = append(transcript, dto.MessageDTO{Role: m.Role, Content: m.Content})
	}
	return &dto.SessionResponse{
		SessionId:    snap.ID,
		CreatedAt:    snap.CreatedAt,
		Character:    snap.CharacterKey,
		ChatModel:    snap.ChatModel,
		CaptionModel: snap.CaptionModel,
		Transcript:   transcript,
	}
}

func (s *conversationService) SetCharacter(ctx context.Context, sessionId, key string) (string, error) {
	character, ok := s.characters.FindByKey(ctx, key)
	if !ok {
		return "", apperror.NotFound("Character '%s' not found", key)
	}

	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()

	sess.SetCharacterKey(key)
	persona := personaMessage(character)
	sess.ResetTo(&persona)

	s.logger.Info("CHAT", "Character selected", map[string]interface{}{
		"session_id": sessionId,
		"character":  key,
	})
	return character.Name, nil
}

func (s *conversationService) Ask(ctx context.Context, sessionId, input string) (string, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", apperror.InvalidInput("Message cannot be empty")
	}

	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()

	if sess.CharacterKey() == "" {
		return "", apperror.NoCharacterSelected()
	}

	sess.Append(store.Message{Role: store.RoleUser, Content: formatUserTurn(text)})
	return s.reply(ctx, sess)
}

func (s *conversationService) ProcessImage(ctx context.Context, sessionId, imagePath string) (string, string, error) {
	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()

	key := sess.CharacterKey()
	if key == "" {
		return "", "", apperror.NoCharacterSelected()
	}
	if _, err := os.Stat(imagePath); err != nil {
		return "", "", apperror.Wrap(apperror.KindNotFound, err, "Image %s not found", imagePath)
	}

	instruction := constant.DefaultImageInstruction
	if character, ok := s.characters.FindByKey(ctx, key); ok && character.ImageCaptionPrompt != "" {
		instruction = character.ImageCaptionPrompt
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	caption, err := s.backend.Caption(callCtx, imagePath, instruction, s.callOptions(sess.CaptionModel())...)
	if err != nil {
		return "", "", s.classify(callCtx, err, "Failed to caption image")
	}
	caption = strings.TrimSpace(caption)

	sess.Append(store.Message{Role: store.RoleUser, Content: fmt.Sprintf(constant.ImageTurnFormat, caption)})
	reply, err := s.reply(ctx, sess)
	if err != nil {
		return caption, "", err
	}
	return caption, reply, nil
}

// Reset rebuilds the transcript from the current registry entry, so an edited
// preset takes effect. A deleted preset clears the selection.
func (s *conversationService) Reset(ctx context.Context, sessionId string) error {
	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()

	key := sess.CharacterKey()
	if key == "" {
		sess.ResetTo(nil)
		return nil
	}

	character, ok := s.characters.FindByKey(ctx, key)
	if !ok {
		sess.SetCharacterKey("")
		sess.ResetTo(nil)
		return nil
	}
	persona := personaMessage(character)
	sess.ResetTo(&persona)
	return nil
}

func (s *conversationService) ChatModel(ctx context.Context, sessionId string) string {
	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()
	return sess.ChatModel()
}

func (s *conversationService) CaptionModel(ctx context.Context, sessionId string) string {
	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()
	return sess.CaptionModel()
}

func (s *conversationService) SelectedCharacter(ctx context.Context, sessionId string) string {
	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()
	return sess.CharacterKey()
}

func (s *conversationService) SelectChatModel(ctx context.Context, sessionId, model string) error {
	ok, err := s.models.IsChatModel(ctx, model)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("Model %s not available", model)
	}

	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()
	sess.SetChatModel(model)
	return nil
}

func (s *conversationService) SelectCaptionModel(ctx context.Context, sessionId, model string) error {
	ok, err := s.models.IsCaptionModel(ctx, model)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NotFound("Model %s not available", model)
	}

	sess := s.session(ctx, sessionId)
	sess.Lock()
	defer sess.Unlock()
	sess.SetCaptionModel(model)
	return nil
}

// reply sends the transcript to the chat model and appends the answer.
// The caller holds the session lock. On failure the transcript keeps the
// user turn and gains no assistant turn.
func (s *conversationService) reply(ctx context.Context, sess *store.Session) (string, error) {
	transcript := sess.Transcript()
	history := make([]llm.Message, 0, len(transcript))
	for _, m := range transcript {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	answer, err := s.backend.Chat(callCtx, history, s.callOptions(sess.ChatModel())...)
	if err != nil {
		s.logger.Error("CHAT", "Chat request failed", map[string]interface{}{
			"session_id": sess.ID,
			"model":      sess.ChatModel(),
			"error":      err.Error(),
		})
		return "", s.classify(callCtx, err, "Chat request failed")
	}

	sess.Append(store.Message{Role: store.RoleAssistant, Content: answer})
	s.logger.Debug("CHAT", "Reply generated", map[string]interface{}{
		"session_id": sess.ID,
		"model":      sess.ChatModel(),
		"turns":      len(transcript) + 1,
		"latency_ms": time.Since(start).Milliseconds(),
	})
	return answer, nil
}

func (s *conversationService) callOptions(model string) []llm.Option {
	opts := []llm.Option{llm.WithModel(model), llm.WithTemperature(s.temperature)}
	if s.maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(s.maxTokens))
	}
	return opts
}

func (s *conversationService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.requestTimeout)
}

func (s *conversationService) classify(ctx context.Context, err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.Upstream(err, "%s: model did not answer within %s", message, s.requestTimeout)
	}
	return apperror.Upstream(err, "%s", message)
}

func personaMessage(character entity.Character) store.Message {
	prompt := character.SystemPrompt
	if character.UserProfile != nil {
		prompt += fmt.Sprintf(constant.UserProfileClause, *character.UserProfile)
	}
	return store.Message{Role: store.RoleSystem, Content: prompt}
}

func formatUserTurn(text string) string {
	if actionPattern.MatchString(text) {
		return fmt.Sprintf(constant.ActionTurnFormat, strings.Trim(text, "*"))
	}
	return text
}
