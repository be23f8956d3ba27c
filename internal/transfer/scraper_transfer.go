package transfer

// ExploreFeedResponse is the provider-side envelope for an explore feed page.
type ExploreFeedResponse struct {
	Items  []ExploreMediaItem `json:"items"`
	Status string             `json:"status"`
}

// ExploreMediaItem mirrors the provider's media payload. MediaType 2 is a
// video, 8 an album that may contain one.
type ExploreMediaItem struct {
	Pk           string `json:"pk"`
	Code         string `json:"code"`
	MediaType    int    `json:"media_type"`
	TakenAt      int64  `json:"taken_at"`
	LikeCount    int    `json:"like_count"`
	CommentCount int    `json:"comment_count"`
	ViewCount    int    `json:"view_count"`
	Caption      struct {
		Text string `json:"text"`
	} `json:"caption"`
	VideoVersions []struct {
		URL string `json:"url"`
	} `json:"video_versions"`
	ImageVersions struct {
		Candidates []struct {
			URL string `json:"url"`
		} `json:"candidates"`
	} `json:"image_versions2"`
	User struct {
		Username   string `json:"username"`
		FullName   string `json:"full_name"`
		IsVerified bool   `json:"is_verified"`
	} `json:"user"`
}

// ScraperSession is the opaque login state persisted between runs.
type ScraperSession struct {
	Username  string `json:"username"`
	SessionID string `json:"session_id"`
	CSRFToken string `json:"csrf_token"`
	DeviceID  string `json:"device_id"`
	CreatedAt int64  `json:"created_at"`
}

type ScraperLoginResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	CSRFToken string `json:"csrf_token"`
	Message   string `json:"message"`
}
