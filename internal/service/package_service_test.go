package service

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPackageService(t *testing.T) (*PackageService, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("SECRET=x"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "clip.mp4"), []byte("video"), 0o644))
	return NewPackageService(root), root
}

func TestCreateArchiveExcludesSecrets(t *testing.T) {
	p, _ := newTestPackageService(t)

	_, err := p.GenerateDownloadToken()
	require.NoError(t, err)

	archivePath, err := p.CreateArchive()
	require.NoError(t, err)

	r, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer r.Close()

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}

	assert.True(t, names["main.go"])
	assert.False(t, names[".env"], ".env must never be packaged")
	assert.False(t, names["download_token.txt"], "token file must never be packaged")
	assert.False(t, names[".git/HEAD"], "VCS directories must be skipped")
	assert.False(t, names["clip.mp4"], "downloaded videos must be skipped")
}

func TestCreateArchiveReplacesExisting(t *testing.T) {
	p, _ := newTestPackageService(t)

	first, err := p.CreateArchive()
	require.NoError(t, err)
	second, err := p.CreateArchive()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	r, err := zip.OpenReader(second)
	require.NoError(t, err)
	r.Close()
}

func TestDownloadTokenSingleUse(t *testing.T) {
	p, _ := newTestPackageService(t)

	token, err := p.GenerateDownloadToken()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(token), 32)

	assert.True(t, p.ValidateDownloadToken(token))

	p.InvalidateDownloadToken()

	assert.False(t, p.ValidateDownloadToken(token), "a redeemed token must be rejected")
}

func TestValidateDownloadTokenRejectsWrongValue(t *testing.T) {
	p, _ := newTestPackageService(t)

	_, err := p.GenerateDownloadToken()
	require.NoError(t, err)

	assert.False(t, p.ValidateDownloadToken("not-the-token"))
	assert.False(t, p.ValidateDownloadToken(""))
}

func TestGenerateDownloadTokenReplacesPrevious(t *testing.T) {
	p, _ := newTestPackageService(t)

	first, err := p.GenerateDownloadToken()
	require.NoError(t, err)
	second, err := p.GenerateDownloadToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.False(t, p.ValidateDownloadToken(first), "only the newest token may validate")
	assert.True(t, p.ValidateDownloadToken(second))
}

func TestDownloadURLEmbedsToken(t *testing.T) {
	p, _ := newTestPackageService(t)

	url := p.DownloadURL("bot.example.dev", "tok123")

	assert.Equal(t, "https://bot.example.dev/download-zip?token=tok123", url)
}

func TestCreateArchiveExcludesSessionFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "instagram_session.json"), []byte(`{"session_id":"s"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "custom_session.json"), []byte(`{"session_id":"s"}`), 0o600))

	p := NewPackageService(root, "custom_session.json")
	archivePath, err := p.CreateArchive()
	require.NoError(t, err)

	r, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer r.Close()

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}

	assert.True(t, names["main.go"])
	assert.False(t, names["instagram_session.json"], "login session must never be packaged")
	assert.False(t, names["custom_session.json"], "configured session file must never be packaged")
}
