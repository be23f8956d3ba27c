package models

import "time"

// VideoCandidate is one video discovered on the explore feed. Candidates
// live for a single repost cycle and are never persisted.
type VideoCandidate struct {
	MediaID        string    `json:"media_id"`
	Shortcode      string    `json:"code"`
	VideoURL       string    `json:"video_url"`
	ThumbnailURL   string    `json:"thumbnail_url"`
	Caption        string    `json:"caption"`
	LikeCount      int       `json:"like_count"`
	ViewCount      int       `json:"view_count"`
	CommentCount   int       `json:"comment_count"`
	TakenAt        time.Time `json:"taken_at"`
	AuthorHandle   string    `json:"author_handle"`
	AuthorName     string    `json:"author_name"`
	AuthorVerified bool      `json:"author_verified"`
}

// EngagementRate is (likes + comments) / views. Videos with an unknown view
// count rate as 0 so they never outrank measured ones.
func (v VideoCandidate) EngagementRate() float64 {
	if v.ViewCount <= 0 {
		return 0
	}
	return float64(v.LikeCount+v.CommentCount) / float64(v.ViewCount)
}

// ViralityThresholds are the minimums a candidate has to clear to count as
// viral. All fields are non-negative.
type ViralityThresholds struct {
	MinLikes          int
	MinViews          int
	MinEngagementRate float64
}
