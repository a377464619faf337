package mapper

import (
	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/model"
)

type CharacterMapper struct{}

func NewCharacterMapper() *CharacterMapper {
	return &CharacterMapper{}
}

func (m *CharacterMapper) ToEntity(key string, c model.Character) entity.Character {
	return entity.Character{
		Key:                key,
		Name:               c.Name,
		Role:               c.Role,
		SystemPrompt:       c.SystemPrompt,
		ImageCaptionPrompt: c.ImageCaptionPrompt,
		UserProfile:        c.UserProfile,
	}
}

func (m *CharacterMapper) ToModel(c entity.Character) model.Character {
	return model.Character{
		Name:               c.Name,
		Role:               c.Role,
		SystemPrompt:       c.SystemPrompt,
		ImageCaptionPrompt: c.ImageCaptionPrompt,
		UserProfile:        c.UserProfile,
	}
}

func (m *CharacterMapper) DocumentToEntities(doc model.CharacterDocument) map[string]entity.Character {
	out := make(map[string]entity.Character, len(doc))
	for key, c := range doc {
		out[key] = m.ToEntity(key, c)
	}
	return out
}

func (m *CharacterMapper) EntitiesToDocument(characters map[string]entity.Character) model.CharacterDocument {
	doc := make(model.CharacterDocument, len(characters))
	for key, c := range characters {
		doc[key] = m.ToModel(c)
	}
	return doc
}
