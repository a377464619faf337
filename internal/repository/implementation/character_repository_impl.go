package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/entity"
	"ollama-chat-be/internal/mapper"
	"ollama-chat-be/internal/model"
	"ollama-chat-be/internal/repository/contract"
	"ollama-chat-be/pkg/apperror"

	"gopkg.in/yaml.v3"
)

// CharacterRepositoryImpl keeps the presets in a single JSON or YAML file
// (chosen by extension) and serves reads from an immutable in-memory map.
type CharacterRepositoryImpl struct {
	path   string
	mapper *mapper.CharacterMapper

	// serializes Load/Create/Upsert/Delete
	writeMu sync.Mutex
	// never mutated after Store; replaced wholesale on every write
	current atomic.Pointer[map[string]entity.Character]
}

func NewCharacterRepository(path string) contract.CharacterRepository {
	r := &CharacterRepositoryImpl{
		path:   path,
		mapper: mapper.NewCharacterMapper(),
	}
	empty := map[string]entity.Character{}
	r.current.Store(&empty)
	return r
}

// Load re-reads the file, seeding and persisting the defaults when it is
// missing or empty. Safe to call any number of times.
func (r *CharacterRepositoryImpl) Load(ctx context.Context) (map[string]entity.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	doc, err := r.readFile()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if len(doc) == 0 {
		seeded := make(map[string]entity.Character, len(constant.DefaultCharacters))
		for key, c := range constant.DefaultCharacters {
			c.Key = key
			seeded[key] = c
		}
		if err := r.persist(seeded); err != nil {
			return nil, err
		}
		return copyCharacters(seeded), nil
	}

	characters := r.mapper.DocumentToEntities(doc)
	r.current.Store(&characters)
	return copyCharacters(characters), nil
}

func (r *CharacterRepositoryImpl) FindAll(ctx context.Context) []entity.Character {
	snapshot := *r.current.Load()

	list := make([]entity.Character, 0, len(snapshot))
	for _, c := range snapshot {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list
}

func (r *CharacterRepositoryImpl) FindByKey(ctx context.Context, key string) (entity.Character, bool) {
	c, ok := (*r.current.Load())[key]
	return c, ok
}

func (r *CharacterRepositoryImpl) FindByName(ctx context.Context, name string) (entity.Character, bool) {
	for _, c := range r.FindAll(ctx) {
		if c.Name == name {
			return c, true
		}
	}
	return entity.Character{}, false
}

func (r *CharacterRepositoryImpl) Create(ctx context.Context, character entity.Character) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current := *r.current.Load()
	if _, exists := current[character.Key]; exists {
		return apperror.AlreadyExists("Character '%s' already exists", character.Name)
	}

	next := copyCharacters(current)
	next[character.Key] = character
	return r.persist(next)
}

func (r *CharacterRepositoryImpl) Upsert(ctx context.Context, key string, character entity.Character) error {
	if key == "" {
		return apperror.InvalidInput("Character key is required")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	character.Key = key
	next := copyCharacters(*r.current.Load())
	next[key] = character
	return r.persist(next)
}

func (r *CharacterRepositoryImpl) Delete(ctx context.Context, key string) error {
	if constant.IsProtectedCharacter(key) {
		return apperror.Protected("Character '%s' is a default character and cannot be deleted", key)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current := *r.current.Load()
	if _, exists := current[key]; !exists {
		return apperror.NotFound("Character '%s' not found", key)
	}

	next := copyCharacters(current)
	delete(next, key)
	return r.persist(next)
}

// persist writes the whole document to a temp file and renames it over the
// old one, then publishes the new snapshot. Caller holds writeMu.
func (r *CharacterRepositoryImpl) persist(characters map[string]entity.Character) error {
	data, err := r.encode(r.mapper.EntitiesToDocument(characters))
	if err != nil {
		return fmt.Errorf("encode characters: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create characters dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace characters file: %w", err)
	}

	r.current.Store(&characters)
	return nil
}

func (r *CharacterRepositoryImpl) readFile() (model.CharacterDocument, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, err
	}

	doc := model.CharacterDocument{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if r.isYAML() {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	return doc, nil
}

func (r *CharacterRepositoryImpl) encode(doc model.CharacterDocument) ([]byte, error) {
	if r.isYAML() {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (r *CharacterRepositoryImpl) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(r.path))
	return ext == ".yaml" || ext == ".yml"
}

func copyCharacters(in map[string]entity.Character) map[string]entity.Character {
	out := make(map[string]entity.Character, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
