package service

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/maheshrc27/repostflow/pkg/utils"
)

const (
	ArchiveFileName       = "repostflow_package.zip"
	downloadTokenFileName = "download_token.txt"
	downloadTokenBytes    = 32
)

var archiveExcludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
}

var archiveExcludedFiles = map[string]bool{
	ArchiveFileName:          true,
	downloadTokenFileName:    true,
	".env":                   true,
	".env.local":             true,
	".env.production":        true,
	"instagram_session.json": true,
}

// PackageService builds the project handoff archive and owns the single-use
// download token that gates its retrieval.
type PackageService struct {
	projectRoot string
	excluded    map[string]bool
}

// NewPackageService roots the archive at projectRoot. excludeFiles lists
// extra credential files to keep out of the handoff zip, such as a
// relocated scraper session file.
func NewPackageService(projectRoot string, excludeFiles ...string) *PackageService {
	if projectRoot == "" {
		projectRoot = "."
	}
	excluded := make(map[string]bool, len(excludeFiles))
	for _, f := range excludeFiles {
		if f != "" {
			excluded[filepath.Base(f)] = true
		}
	}
	return &PackageService{projectRoot: projectRoot, excluded: excluded}
}

func (p *PackageService) ArchivePath() string {
	return filepath.Join(p.projectRoot, ArchiveFileName)
}

func (p *PackageService) tokenPath() string {
	return filepath.Join(p.projectRoot, downloadTokenFileName)
}

// CreateArchive zips the project tree, skipping credentials, the token file
// and dependency/VCS directories. An existing archive is replaced.
func (p *PackageService) CreateArchive() (string, error) {
	archivePath := p.ArchivePath()
	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("remove existing archive: %w", err)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	filesAdded := 0

	err = filepath.WalkDir(p.projectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if archiveExcludedDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if archiveExcludedFiles[name] || p.excluded[name] || strings.HasSuffix(name, ".mp4") {
			return nil
		}

		rel, err := filepath.Rel(p.projectRoot, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}
		filesAdded++
		return nil
	})
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("walk project tree: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}

	slog.Info("project archive created", "path", archivePath, "files", filesAdded)
	return archivePath, nil
}

// GenerateDownloadToken mints a fresh single-use token, replacing any
// previous one. At most one token is valid at a time.
func (p *PackageService) GenerateDownloadToken() (string, error) {
	token, err := utils.GenerateRandomKey(downloadTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate download token: %w", err)
	}
	if err := os.WriteFile(p.tokenPath(), []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("persist download token: %w", err)
	}
	slog.Info("download token generated")
	return token, nil
}

// ValidateDownloadToken reports whether provided matches the current token.
func (p *PackageService) ValidateDownloadToken(provided string) bool {
	if provided == "" {
		return false
	}
	stored, err := os.ReadFile(p.tokenPath())
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("error reading download token", "error", err)
		}
		return false
	}
	return strings.TrimSpace(string(stored)) == provided
}

// InvalidateDownloadToken destroys the current token. Called after a
// successful redemption so the token is single use.
func (p *PackageService) InvalidateDownloadToken() {
	if err := os.Remove(p.tokenPath()); err != nil && !os.IsNotExist(err) {
		slog.Error("error invalidating download token", "error", err)
		return
	}
	slog.Info("download token invalidated")
}

// DownloadURL builds the operator-facing link embedding token.
func (p *PackageService) DownloadURL(domain, token string) string {
	return fmt.Sprintf("https://%s/download-zip?token=%s", domain, token)
}
