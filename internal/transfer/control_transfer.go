package transfer

// PackageResult is what a manual packaging trigger hands back to the caller.
type PackageResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	DownloadURL   string `json:"download_url"`
	DownloadToken string `json:"download_token"`
}
