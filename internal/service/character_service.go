package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/internal/repository/contract"
	"ollama-chat-be/pkg/apperror"
	"ollama-chat-be/pkg/events"
)

type ICharacterService interface {
	List(ctx context.Context) []dto.CharacterListItem
	Get(ctx context.Context, key string) (*dto.CharacterResponse, error)
	Create(ctx context.Context, request *dto.CreateCharacterRequest) (*dto.CharacterResponse, error)
	Update(ctx context.Context, key string, request *dto.UpdateCharacterRequest) (*dto.CharacterResponse, error)
	Delete(ctx context.Context, key string) error
	Reload(ctx context.Context) ([]dto.CharacterListItem, error)
	Select(ctx context.Context, sessionId string, request *dto.SelectCharacterRequest) (*dto.SelectCharacterResponse, error)
}

type characterService struct {
	repository   contract.CharacterRepository
	conversation IConversationService
	publisher    events.Publisher
	logger       logger.ILogger
}

func NewCharacterService(
	repository contract.CharacterRepository,
	conversation IConversationService,
	publisher events.Publisher,
	log logger.ILogger,
) ICharacterService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &characterService{
		repository:   repository,
		conversation: conversation,
		publisher:    publisher,
		logger:       log,
	}
}

func (s *characterService) List(ctx context.Context) []dto.CharacterListItem {
	characters := s.repository.FindAll(ctx)
	res := make([]dto.CharacterListItem, 0, len(characters))
	for _, c := range characters {
		res = append(res, dto.CharacterListItem{Key: c.Key, Name: c.Name})
	}
	return res
}

func (s *characterService) Get(ctx context.Context, key string) (*dto.CharacterResponse, error) {
	character, ok := s.repository.FindByKey(ctx, key)
	if !ok {
		return nil, apperror.NotFound("Character '%s' not found", key)
	}
	return toCharacterResponse(character), nil
}

// Create derives the key from the name and fills the custom-character defaults.
func (s *characterService) Create(ctx context.Context, request *dto.CreateCharacterRequest) (*dto.CharacterResponse, error) {
	name := strings.TrimSpace(request.Name)
	description := strings.TrimSpace(request.Description)
	captionPrompt := strings.TrimSpace(request.ImageCaptionPrompt)
	if name == "" {
		return nil, apperror.InvalidInput("Character name is required")
	}

	character := entity.Character{
		Key:                entity.CharacterKeyFromName(name),
		Name:               name,
		Role:               description,
		SystemPrompt:       description,
		ImageCaptionPrompt: captionPrompt,
	}
	if character.Role == "" {
		character.Role = constant.CustomCharacterRole
	}
	if character.SystemPrompt == "" {
		character.SystemPrompt = fmt.Sprintf(constant.CustomSystemPrompt, name)
	}
	if character.ImageCaptionPrompt == "" {
		character.ImageCaptionPrompt = constant.CustomCaptionPrompt
	}

	if err := s.repository.Create(ctx, character); err != nil {
		return nil, err
	}

	s.logger.Info("CHARACTER", "Character created", map[string]interface{}{"key": character.Key})
	return toCharacterResponse(character), nil
}

func (s *characterService) Update(ctx context.Context, key string, request *dto.UpdateCharacterRequest) (*dto.CharacterResponse, error) {
	if key == "" {
		return nil, apperror.InvalidInput("Character key is required")
	}

	character := entity.Character{
		Key:                key,
		Name:               strings.TrimSpace(request.Name),
		Role:               strings.TrimSpace(request.Role),
		SystemPrompt:       request.SystemPrompt,
		ImageCaptionPrompt: request.ImageCaptionPrompt,
		UserProfile:        request.UserProfile,
	}
	if character.ImageCaptionPrompt == "" {
		character.ImageCaptionPrompt = constant.DefaultImageInstruction
	}

	if err := s.repository.Upsert(ctx, key, character); err != nil {
		return nil, err
	}

	s.logger.Info("CHARACTER", "Character saved", map[string]interface{}{"key": key})
	return toCharacterResponse(character), nil
}

func (s *characterService) Delete(ctx context.Context, key string) error {
	if err := s.repository.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.Info("CHARACTER", "Character deleted", map[string]interface{}{"key": key})
	return nil
}

// Reload re-reads the preset file. Sessions hold keys, so every open
// conversation sees the new presets on its next reset or caption.
func (s *characterService) Reload(ctx context.Context) ([]dto.CharacterListItem, error) {
	characters, err := s.repository.Load(ctx)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, err, "Failed to reload characters")
	}

	keys := make([]string, 0, len(characters))
	for key := range characters {
		keys = append(keys, key)
	}
	event := events.BaseEvent{
		Type:       events.TypeCharactersReloaded,
		Data:       map[string]interface{}{"count": len(characters), "keys": keys},
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("CHARACTER", "Failed to publish reload event", map[string]interface{}{"error": err.Error()})
	}

	return s.List(ctx), nil
}

// Select accepts a key, or falls back to matching the display name.
func (s *characterService) Select(ctx context.Context, sessionId string, request *dto.SelectCharacterRequest) (*dto.SelectCharacterResponse, error) {
	key := strings.TrimSpace(request.Key)
	if key == "" {
		key = strings.TrimSpace(request.Character)
	}
	if key == "" {
		return nil, apperror.InvalidInput("Character is required")
	}

	if _, ok := s.repository.FindByKey(ctx, key); !ok {
		if byName, found := s.repository.FindByName(ctx, key); found {
			key = byName.Key
		}
	}

	name, err := s.conversation.SetCharacter(ctx, sessionId, key)
	if err != nil {
		return nil, err
	}
	return &dto.SelectCharacterResponse{CharacterName: name}, nil
}

func toCharacterResponse(c entity.Character) *dto.CharacterResponse {
	return &dto.CharacterResponse{
		Key:                c.Key,
		Name:               c.Name,
		Role:               c.Role,
		SystemPrompt:       c.SystemPrompt,
		ImageCaptionPrompt: c.ImageCaptionPrompt,
		UserProfile:        c.UserProfile,
		Protected:          constant.IsProtectedCharacter(c.Key),
	}
}
