package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/d60-Lab/yatube/config"
)

const postImageDir = "posts"

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// MediaStorage 本地文件存储，帖子图片落在 <root>/posts/<uuid><ext>
type MediaStorage struct {
	root     string
	url      string
	maxBytes int64
}

func NewMediaStorage(cfg config.MediaConfig) *MediaStorage {
	url := cfg.URL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	return &MediaStorage{root: cfg.Root, url: url, maxBytes: cfg.MaxUploadBytes}
}

// Root is the directory served under URL prefix.
func (m *MediaStorage) Root() string { return m.root }

// URLPrefix is the public prefix media paths are served under.
func (m *MediaStorage) URLPrefix() string { return m.url }

// URL maps a stored relative path to its public URL.
func (m *MediaStorage) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return m.url + rel
}

// SavePostImage stores an uploaded image and returns its path relative to the
// media root. Unsupported content or oversized files yield a ValidationError
// on the "image" field.
func (m *MediaStorage) SavePostImage(fh *multipart.FileHeader) (string, error) {
	if m.maxBytes > 0 && fh.Size > m.maxBytes {
		return "", newValidationError("image", fmt.Sprintf("File too large; the limit is %d bytes.", m.maxBytes))
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("detect upload type: %w", err)
	}
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return "", newValidationError("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	rel := path.Join(postImageDir, uuid.NewString()+mt.Extension())
	dst := filepath.Join(m.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write media file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("close media file: %w", err)
	}
	return rel, nil
}

// Remove deletes a stored file; missing files are ignored.
func (m *MediaStorage) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	err := os.Remove(filepath.Join(m.root, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
