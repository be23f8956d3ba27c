package transfer

// GraphContainerResponse is returned by POST /{ig-user-id}/media and
// POST /{ig-user-id}/media_publish; both carry a single id.
type GraphContainerResponse struct {
	ID string `json:"id"`
}

// GraphStatusResponse is returned by GET /{container-id}?fields=status_code.
type GraphStatusResponse struct {
	StatusCode string `json:"status_code"`
	ID         string `json:"id"`
}

type GraphErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}
