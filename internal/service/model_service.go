package service

import (
	"context"
	"slices"
	"sort"
	"time"

	"ollama-chat-be/internal/constant"
	"ollama-chat-be/internal/dto"
	"ollama-chat-be/internal/pkg/logger"
	"ollama-chat-be/pkg/apperror"
	"ollama-chat-be/pkg/llm"

	"github.com/patrickmn/go-cache"
)

const catalogCacheKey = "catalog"

type IModelService interface {
	Catalog(ctx context.Context) (*dto.ModelListResponse, error)
	Refresh(ctx context.Context) (*dto.ModelListResponse, error)
	IsChatModel(ctx context.Context, name string) (bool, error)
	IsCaptionModel(ctx context.Context, name string) (bool, error)
	ListInstalled(ctx context.Context) ([]*dto.InstalledModelResponse, error)
	DeleteInstalled(ctx context.Context, name string) error
	Invalidate()
}

type modelService struct {
	inventory       llm.ModelInventory
	cache           *cache.Cache
	fallbackChat    string
	fallbackCaption string
	logger          logger.ILogger
}

func NewModelService(
	inventory llm.ModelInventory,
	cacheTTL time.Duration,
	fallbackChat, fallbackCaption string,
	log logger.ILogger,
) IModelService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &modelService{
		inventory:       inventory,
		cache:           cache.New(cacheTTL, 2*cacheTTL),
		fallbackChat:    fallbackChat,
		fallbackCaption: fallbackCaption,
		logger:          log,
	}
}

// Catalog returns the cached partition. An unreachable inventory yields the
// configured fallback models without caching them.
func (s *modelService) Catalog(ctx context.Context) (*dto.ModelListResponse, error) {
	if cached, ok := s.cache.Get(catalogCacheKey); ok {
		return cached.(*dto.ModelListResponse), nil
	}

	res, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("MODEL", "Inventory unavailable, using fallback models", map[string]interface{}{
			"error": err.Error(),
		})
		return &dto.ModelListResponse{
			ChatModels:    []string{s.fallbackChat},
			CaptionModels: []string{s.fallbackCaption},
		}, nil
	}
	return res, nil
}

func (s *modelService) Refresh(ctx context.Context) (*dto.ModelListResponse, error) {
	s.cache.Delete(catalogCacheKey)
	res, err := s.load(ctx)
	if err != nil {
		return nil, apperror.Upstream(err, "Failed to refresh models")
	}
	return res, nil
}

func (s *modelService) load(ctx context.Context) (*dto.ModelListResponse, error) {
	models, err := s.inventory.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	chat, caption := llm.Partition(names, constant.CaptionModelKeywords)
	if chat == nil {
		chat = []string{}
	}
	if caption == nil {
		caption = []string{}
	}

	res := &dto.ModelListResponse{ChatModels: chat, CaptionModels: caption}
	s.cache.SetDefault(catalogCacheKey, res)
	return res, nil
}

func (s *modelService) IsChatModel(ctx context.Context, name string) (bool, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(catalog.ChatModels, name), nil
}

func (s *modelService) IsCaptionModel(ctx context.Context, name string) (bool, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(catalog.CaptionModels, name), nil
}

func (s *modelService) ListInstalled(ctx context.Context) ([]*dto.InstalledModelResponse, error) {
	models, err := s.inventory.ListModels(ctx)
	if err != nil {
		return nil, apperror.Upstream(err, "Failed to list installed models")
	}

	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

	res := make([]*dto.InstalledModelResponse, 0, len(models))
	for _, m := range models {
		res = append(res, &dto.InstalledModelResponse{
			Name:       m.Name,
			Size:       m.Size,
			Digest:     m.Digest,
			ModifiedAt: m.ModifiedAt,
			Caption:    llm.IsCaptionModel(m.Name, constant.CaptionModelKeywords),
		})
	}
	return res, nil
}

func (s *modelService) DeleteInstalled(ctx context.Context, name string) error {
	if name == "" {
		return apperror.InvalidInput("Model name is required")
	}
	if err := s.inventory.DeleteModel(ctx, name); err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return err
		}
		return apperror.Upstream(err, "Failed to delete model %s", name)
	}
	s.Invalidate()
	s.logger.Info("MODEL", "Model deleted", map[string]interface{}{"model": name})
	return nil
}

// Invalidate drops the cached partition so the next read hits the inventory.
func (s *modelService) Invalidate() {
	s.cache.Delete(catalogCacheKey)
}
