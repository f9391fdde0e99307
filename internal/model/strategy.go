package model

import "gorm.io/gorm"

// Strategy is a purchasable course: an ordered sequence of videos with a
// price snapshot taken at subscribe time.
type Strategy struct {
	gorm.Model
	Name        string  `json:"name" gorm:"not null"`
	Slug        string  `json:"slug" gorm:"uniqueIndex;not null"`
	Description string  `json:"description"`
	Price       float64 `json:"price" gorm:"not null"`
	// Optional discounted price for same-strategy renewals. Zero means
	// renewals are charged the full price.
	RenewalPrice float64 `json:"renewal_price"`
	DurationDays float64 `json:"duration_days" gorm:"default:30"`
	CoverImage   string  `json:"cover_image"`

	Videos []StrategyVideo `json:"videos,omitempty"`
}

type StrategyVideo struct {
	gorm.Model
	StrategyID uint   `json:"strategy_id" gorm:"index;not null"`
	OrderIndex int    `json:"order_index" gorm:"not null"`
	Title      string `json:"title" gorm:"not null"`
	// Video id on the CDN; playback URLs are signed per request.
	CDNVideoID      string `json:"cdn_video_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

// OrderedVideoIDs returns the strategy's video ids sorted by order index.
// The caller must have preloaded Videos.
func (s *Strategy) OrderedVideoIDs() []uint {
	videos := make([]StrategyVideo, len(s.Videos))
	copy(videos, s.Videos)
	for i := 1; i < len(videos); i++ {
		for j := i; j > 0 && videos[j-1].OrderIndex > videos[j].OrderIndex; j-- {
			videos[j-1], videos[j] = videos[j], videos[j-1]
		}
	}
	ids := make([]uint, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	return ids
}
