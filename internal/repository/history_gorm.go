package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biscalabs/biscagate/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormHistoryRepo stores settled game records.
type GormHistoryRepo struct {
	db *gorm.DB
}

func NewGormHistoryRepo(dsn string) (*GormHistoryRepo, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if err := db.AutoMigrate(&model.GameRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate game history: %w", err)
	}
	return &GormHistoryRepo{db: db}, nil
}

func (r *GormHistoryRepo) Append(ctx context.Context, rec *model.GameRecord) error {
	if rec == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormHistoryRepo) GetByID(ctx context.Context, id uint64) (*model.GameRecord, error) {
	var rec model.GameRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *GormHistoryRepo) ListByPlayer(ctx context.Context, player string, limit int) ([]*model.GameRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var recs []*model.GameRecord
	err := r.db.WithContext(ctx).
		Where("player = ?", player).
		Order("settled_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// Cleanup removes settled games past the retention window.
func (r *GormHistoryRepo) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("settled_at < ?", time.Now().Add(-retention)).
		Delete(&model.GameRecord{})
	return res.RowsAffected, res.Error
}
