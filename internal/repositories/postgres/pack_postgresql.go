package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-engine/internal/cache"
	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

type PackPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewPackPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.PackRepository {
	return &PackPostgreSQL{db: db, cacheManager: cacheManager}
}

// GetByID returns pack metadata only; questions are never cached.
func (p *PackPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Pack, error) {
	var pack models.Pack
	err := p.cacheManager.Pack.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &pack, cache.PackCacheConfig.TTL, func() (interface{}, error) {
		var fetched models.Pack
		if err := p.db.WithContext(ctx).First(&fetched, id).Error; err != nil {
			return nil, translateError(err, "get pack")
		}
		return &fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return &pack, nil
}
