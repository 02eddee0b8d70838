package flags

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moisesblank/people-flow-desk-sub004/internal/entity"
	"github.com/moisesblank/people-flow-desk-sub004/internal/repo"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
)

// DefaultWhenAbsent is the fail-open policy: a flag with no row, or a flag
// the store cannot currently answer for, resolves to true. Flipping this to
// fail-closed is a deployment decision, which is why it is a named constant
// and not an inline fallback.
const DefaultWhenAbsent = true

type cachedFlag struct {
	value    bool
	cachedAt time.Time
}

type UseCase struct {
	flagRepo repo.FlagRepo
	logger   logger.Interface

	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cachedFlag
}

func New(flagRepo repo.FlagRepo, l logger.Interface, cacheTTL time.Duration) *UseCase {
	return &UseCase{
		flagRepo: flagRepo,
		logger:   l,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedFlag),
	}
}

// Resolve returns the flag value, serving from cache within the TTL. Missing
// rows and store errors both resolve to DefaultWhenAbsent.
func (uc *UseCase) Resolve(ctx context.Context, key string) bool {
	uc.mu.RLock()
	cached, ok := uc.cache[key]
	uc.mu.RUnlock()

	if ok && time.Since(cached.cachedAt) < uc.cacheTTL {
		return cached.value
	}

	value := DefaultWhenAbsent

	flag, err := uc.flagRepo.Get(ctx, key)
	if err != nil {
		uc.logger.Warn("flag %q unresolved, using default %v: %v", key, DefaultWhenAbsent, err)
	} else {
		value = flag.Value
	}

	uc.mu.Lock()
	uc.cache[key] = cachedFlag{value: value, cachedAt: time.Now()}
	uc.mu.Unlock()

	return value
}

func (uc *UseCase) Get(ctx context.Context, key string) (*entity.FeatureFlag, error) {
	flag, err := uc.flagRepo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("FlagUseCase - Get - uc.flagRepo.Get: %w", err)
	}

	return flag, nil
}

// Update persists the flag and invalidates any cached read.
func (uc *UseCase) Update(ctx context.Context, key string, value bool, updatedBy string) error {
	err := uc.flagRepo.Upsert(ctx, &entity.FeatureFlag{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
		UpdatedBy: updatedBy,
	})
	if err != nil {
		return fmt.Errorf("FlagUseCase - Update - uc.flagRepo.Upsert: %w", err)
	}

	uc.mu.Lock()
	delete(uc.cache, key)
	uc.mu.Unlock()

	return nil
}
