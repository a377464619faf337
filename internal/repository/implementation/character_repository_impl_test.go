package implementation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/entity"
	"ollama-chat-be/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterRepository_LoadSeedsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "characters.json")
	repo := NewCharacterRepository(path)

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, len(constant.DefaultCharacters))

	_, err = os.Stat(path)
	require.NoError(t, err, "defaults are persisted")

	assistant, ok := repo.FindByKey(context.Background(), "assistant")
	require.True(t, ok)
	assert.Equal(t, "Assistant", assistant.Name)
	assert.Equal(t, "assistant", assistant.Key)

	// idempotent
	again, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, loaded, again)
}

func TestCharacterRepository_LoadEmptyFileSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "characters.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0644))

	loaded, err := NewCharacterRepository(path).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, len(constant.DefaultCharacters))
}

func TestCharacterRepository_LoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "characters.json")
	doc := `{"pirate": {"name": "Pirate", "role": "Sea dog", "system_prompt": "Arr.", "image_caption_prompt": "Describe the loot", "user_profile": "a landlubber"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	repo := NewCharacterRepository(path)
	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	pirate, ok := repo.FindByName(context.Background(), "Pirate")
	require.True(t, ok)
	assert.Equal(t, "pirate", pirate.Key)
	require.NotNil(t, pirate.UserProfile)
	assert.Equal(t, "a landlubber", *pirate.UserProfile)
}

func TestCharacterRepository_LoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "characters.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewCharacterRepository(path).Load(context.Background())
	assert.Error(t, err)
}

func TestCharacterRepository_CreateUpsertDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "characters.json")
	repo := NewCharacterRepository(path)
	_, err := repo.Load(ctx)
	require.NoError(t, err)

	pirate := entity.Character{Key: "pirate", Name: "Pirate", Role: "Sea dog", SystemPrompt: "Arr."}
	require.NoError(t, repo.Create(ctx, pirate))

	err = repo.Create(ctx, pirate)
	assert.True(t, errors.Is(err, apperror.ErrAlreadyExists))

	pirate.SystemPrompt = "Arr, matey."
	require.NoError(t, repo.Upsert(ctx, "pirate", pirate))

	// a fresh repository sees the persisted state
	reloaded := NewCharacterRepository(path)
	_, err = reloaded.Load(ctx)
	require.NoError(t, err)
	got, ok := reloaded.FindByKey(ctx, "pirate")
	require.True(t, ok)
	assert.Equal(t, "Arr, matey.", got.SystemPrompt)

	require.NoError(t, repo.Delete(ctx, "pirate"))
	_, ok = repo.FindByKey(ctx, "pirate")
	assert.False(t, ok)

	err = repo.Delete(ctx, "pirate")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestCharacterRepository_ConcurrentWritersAndReaders(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "characters.json")
	repo := NewCharacterRepository(path)
	_, err := repo.Load(ctx)
	require.NoError(t, err)

	const writers = 16
	done := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snapshot := repo.FindAll(ctx)
				keys := make([]string, 0, len(snapshot))
				for _, c := range snapshot {
					keys = append(keys, c.Key)
				}
				assert.True(t, sort.StringsAreSorted(keys), "snapshot out of order: %v", keys)
				for key := range constant.DefaultCharacters {
					_, ok := repo.FindByKey(ctx, key)
					assert.True(t, ok, "default %s missing mid-write", key)
				}
			}
		}()
	}

	var writersWg sync.WaitGroup
	for i := 0; i < writers; i++ {
		writersWg.Add(1)
		go func(i int) {
			defer writersWg.Done()
			key := fmt.Sprintf("writer_%02d", i)
			c := entity.Character{Key: key, Name: key, Role: "Tester", SystemPrompt: "v1"}
			assert.NoError(t, repo.Create(ctx, c))
			c.SystemPrompt = "v2"
			assert.NoError(t, repo.Upsert(ctx, key, c))
			if i%2 == 1 {
				assert.NoError(t, repo.Delete(ctx, key))
			}
		}(i)
	}
	writersWg.Wait()
	close(done)
	readers.Wait()

	assert.Len(t, repo.FindAll(ctx), len(constant.DefaultCharacters)+writers/2)
	for i := 0; i < writers; i++ {
		got, ok := repo.FindByKey(ctx, fmt.Sprintf("writer_%02d", i))
		if i%2 == 1 {
			assert.False(t, ok, "writer_%02d", i)
			continue
		}
		require.True(t, ok, "writer_%02d", i)
		assert.Equal(t, "v2", got.SystemPrompt)
	}

	// the file holds the last committed state
	reloaded := NewCharacterRepository(path)
	_, err = reloaded.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, repo.FindAll(ctx), reloaded.FindAll(ctx))
}

func TestCharacterRepository_DeleteProtected(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "characters.json")
	repo := NewCharacterRepository(path)
	_, err := repo.Load(ctx)
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	for key := range constant.DefaultCharacters {
		err := repo.Delete(ctx, key)
		assert.True(t, errors.Is(err, apperror.ErrProtected), key)
	}

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, repo.FindAll(ctx), len(constant.DefaultCharacters))
}

func TestCharacterRepository_YAML(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "presets.yaml")
	repo := NewCharacterRepository(path)
	_, err := repo.Load(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "system_prompt:")

	reloaded, err := NewCharacterRepository(path).Load(ctx)
	require.NoError(t, err)
	assert.Len(t, reloaded, len(constant.DefaultCharacters))
}

func TestCharacterRepository_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo := NewCharacterRepository(filepath.Join(dir, "characters.json"))
	_, err := repo.Load(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := entity.Character{Name: "Writer", SystemPrompt: "Write."}
			_ = repo.Upsert(ctx, "writer", c)
			_ = repo.FindAll(ctx)
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "characters.json", entries[0].Name())
}
