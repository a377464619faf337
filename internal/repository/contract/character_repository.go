package contract

import (
	"context"

	"ollama-chat-be/internal/entity"
)

// CharacterRepository is the shared preset registry. Reads are snapshot
// reads; writes are serialized and persisted before they become visible.
type CharacterRepository interface {
	Load(ctx context.Context) (map[string]entity.Character, error)
	FindAll(ctx context.Context) []entity.Character
	FindByKey(ctx context.Context, key string) (entity.Character, bool)
	FindByName(ctx context.Context, name string) (entity.Character, bool)
	Create(ctx context.Context, character entity.Character) error
	Upsert(ctx context.Context, key string, character entity.Character) error
	Delete(ctx context.Context, key string) error
}
