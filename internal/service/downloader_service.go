package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/maheshrc27/repostflow/configs"
	"github.com/maheshrc27/repostflow/internal/models"
)

const downloadTimeout = 60 * time.Second

// VideoDownloader pulls a candidate's video file to local disk and manages
// the retention of old downloads.
type VideoDownloader interface {
	Download(ctx context.Context, candidate models.VideoCandidate) (string, error)
	Cleanup(keepLatest int) error
}

type downloaderService struct {
	downloadPath string
	httpClient   *http.Client
}

func NewVideoDownloader(cfg config.Config) (VideoDownloader, error) {
	if err := os.MkdirAll(cfg.VideoDownloadPath, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	return &downloaderService{
		downloadPath: cfg.VideoDownloadPath,
		httpClient:   &http.Client{Timeout: downloadTimeout},
	}, nil
}

func (d *downloaderService) Download(ctx context.Context, candidate models.VideoCandidate) (string, error) {
	if candidate.VideoURL == "" {
		return "", fmt.Errorf("candidate %s has no video URL", candidate.Shortcode)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate filename: %w", err)
	}
	outputPath := filepath.Join(d.downloadPath, fmt.Sprintf("%s_%s.mp4", candidate.Shortcode, id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.VideoURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code downloading video: %d", resp.StatusCode)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("write video file: %w", err)
	}

	if err := verifyVideoFile(outputPath); err != nil {
		os.Remove(outputPath)
		return "", err
	}

	slog.Info("video downloaded", "shortcode", candidate.Shortcode, "path", outputPath, "size_mb", float64(written)/(1024*1024))
	return outputPath, nil
}

// verifyVideoFile checks the magic bytes so a provider HTML error page
// never gets handed to the publisher as an mp4.
func verifyVideoFile(path string) error {
	head := make([]byte, 261)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open downloaded file: %w", err)
	}
	defer f.Close()

	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read downloaded file: %w", err)
	}

	if !filetype.IsVideo(head[:n]) {
		return fmt.Errorf("downloaded file is not a video")
	}
	return nil
}

// Cleanup deletes all but the newest keepLatest mp4 files in the download
// directory.
func (d *downloaderService) Cleanup(keepLatest int) error {
	paths, err := filepath.Glob(filepath.Join(d.downloadPath, "*.mp4"))
	if err != nil {
		return err
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{path: p, modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	deleted := 0
	for _, f := range files[min(keepLatest, len(files)):] {
		if err := os.Remove(f.path); err != nil {
			slog.Warn("failed to delete old video", "path", f.path, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		slog.Info("cleaned up old videos", "deleted", deleted, "kept", keepLatest)
	}
	return nil
}
