package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Sentiment labels as stored in the database and shown to managers.
const (
	SentimentPositive = "позитив"
	SentimentNeutral  = "нейтральный"
	SentimentNegative = "негатив"
)

// Feedback is one fully processed shopper submission. Core fields are
// written once by the ingestion pipeline and never updated afterwards.
type Feedback struct {
	ID           string                     `json:"id" gorm:"primaryKey"`
	ShopID       string                     `json:"shop_id" gorm:"index"`
	DeviceID     string                     `json:"device_id"`
	IsAnonymous  bool                       `json:"is_anonymous"`
	AudioPath    string                     `json:"audio_path"`
	Transcript   string                     `json:"transcript"`
	Sentiment    string                     `json:"sentiment" gorm:"index"`
	EmotionScore float64                    `json:"emotion_score"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Summary      string                     `json:"summary"`
	Timestamp    time.Time                  `json:"timestamp" gorm:"index"`
}

func (Feedback) TableName() string {
	return "feedbacks"
}

// FeedbackSummary is the lightweight row returned by the shop feed.
type FeedbackSummary struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Sentiment    string    `json:"sentiment"`
	EmotionScore float64   `json:"emotion_score"`
}

// FeedbackFilter drives the admin listing query.
type FeedbackFilter struct {
	ShopID    string
	Sentiment string
	Limit     int
	Offset    int
}
