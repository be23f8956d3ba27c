package service

import (
	"sort"

	"github.com/maheshrc27/repostflow/internal/models"
)

// ViralitySelector ranks a scraped batch by engagement. It is pure: no
// fallback policy lives here, callers decide what an empty result means.
type ViralitySelector struct{}

func NewViralitySelector() *ViralitySelector {
	return &ViralitySelector{}
}

// Select returns the candidates clearing every threshold, ordered by
// engagement rate descending. The sort is stable so equally ranked videos
// keep their feed order.
func (s *ViralitySelector) Select(candidates []models.VideoCandidate, t models.ViralityThresholds) []models.VideoCandidate {
	viral := make([]models.VideoCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.LikeCount >= t.MinLikes && c.ViewCount >= t.MinViews && c.EngagementRate() >= t.MinEngagementRate {
			viral = append(viral, c)
		}
	}

	sort.SliceStable(viral, func(i, j int) bool {
		return viral[i].EngagementRate() > viral[j].EngagementRate()
	})

	return viral
}
