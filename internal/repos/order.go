package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/cafebotify/cafebot-backend/internal/pkg/logger"
	"github.com/cafebotify/cafebot-backend/internal/types"
)

// OrderRepo is the append-only archive of order snapshots. Rows are written
// once at finalize time and never updated.
type OrderRepo interface {
	Insert(ctx context.Context, tx *gorm.DB, order *types.ArchivedOrder) (*types.ArchivedOrder, error)
	ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ArchivedOrder, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.ArchivedOrder, error)
}

type orderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrderRepo(db *gorm.DB, baseLog *logger.Logger) OrderRepo {
	return &orderRepo{db: db, log: baseLog.With("repo", "OrderRepo")}
}

func (r *orderRepo) Insert(ctx context.Context, tx *gorm.DB, order *types.ArchivedOrder) (*types.ArchivedOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.ArchivedOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var results []*types.ArchivedOrder
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.ArchivedOrder, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var results []*types.ArchivedOrder
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
