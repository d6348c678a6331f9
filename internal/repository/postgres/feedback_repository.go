package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feedbacker/domain"

	"gorm.io/gorm"
)

type FeedbackRepository struct {
	DB *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{
		DB: db,
	}
}

// Save inserts the record. There is no update path: core fields are
// written once by the pipeline and never touched again.
func (r *FeedbackRepository) Save(ctx context.Context, fb *domain.Feedback) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	return nil
}

func (r *FeedbackRepository) FindByID(ctx context.Context, id string) (domain.Feedback, error) {
	if err := ctx.Err(); err != nil {
		return domain.Feedback{}, fmt.Errorf("context error: %w", err)
	}

	var fb domain.Feedback
	err := r.DB.WithContext(ctx).First(&fb, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Feedback{}, domain.ErrNotFound
		}

		return domain.Feedback{}, fmt.Errorf("failed to find feedback: %w", err)
	}

	return fb, nil
}

// List returns one page ordered by newest first. nextOffset is non-nil
// only when the page came back full, so pagination terminates cleanly.
func (r *FeedbackRepository) List(ctx context.Context, filter domain.FeedbackFilter) ([]domain.Feedback, *int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("context error: %w", err)
	}

	q := r.DB.WithContext(ctx).Model(&domain.Feedback{})
	if filter.ShopID != "" {
		q = q.Where("shop_id = ?", filter.ShopID)
	}
	if filter.Sentiment != "" {
		q = q.Where("sentiment = ?", filter.Sentiment)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var items []domain.Feedback
	err := q.Order("timestamp DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&items).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list feedbacks: %w", err)
	}

	var nextOffset *int
	if len(items) == limit {
		n := filter.Offset + limit
		nextOffset = &n
	}

	return items, nextOffset, nil
}

// FindByShopSince powers the kiosk feed: newest first, optionally only
// records after a given moment.
func (r *FeedbackRepository) FindByShopSince(ctx context.Context, shopID string, since time.Time, limit int) ([]domain.FeedbackSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	q := r.DB.WithContext(ctx).Model(&domain.Feedback{}).Where("shop_id = ?", shopID)
	if !since.IsZero() {
		q = q.Where("timestamp > ?", since)
	}

	var items []domain.FeedbackSummary
	err := q.Order("timestamp DESC").Limit(limit).Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list shop feedbacks: %w", err)
	}

	return items, nil
}
