package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	errUnsupportedImage = errors.New("unsupported image type")
	errNoFiles          = errors.New("no files in the request")
	errTooManyFiles     = errors.New("too many files")
)

// allowedImages maps the sniffed content type to the stored extension.
var allowedImages = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Uploader stores product images under dir/products and hands back the
// public paths served from /uploads.
type Uploader struct {
	dir      string
	maxFiles int
	maxBytes int64
}

func NewUploader(dir string, maxFiles int, maxBytes int64) *Uploader {
	return &Uploader{dir: dir, maxFiles: maxFiles, maxBytes: maxBytes}
}

// SaveImages writes every file of the multipart field. The type is taken
// from the file contents, not from the name or the client's header. On
// failure nothing written by this call is left behind.
func (u *Uploader) SaveImages(r *http.Request, field string) ([]string, error) {
	if err := r.ParseMultipartForm(u.maxBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", errNoFiles, err)
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, errNoFiles
	}
	if len(files) > u.maxFiles {
		return nil, errTooManyFiles
	}

	target := filepath.Join(u.dir, "products")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	var written, paths []string
	for _, fh := range files {
		name, err := u.saveOne(fh, target)
		if err != nil {
			for _, p := range written {
				_ = os.Remove(p)
			}
			return nil, err
		}
		written = append(written, filepath.Join(target, name))
		paths = append(paths, "/uploads/products/"+name)
	}
	return paths, nil
}

func (u *Uploader) saveOne(fh *multipart.FileHeader, target string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	mt, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("detect type: %w", err)
	}
	ext, ok := allowedImages[mt.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s", errUnsupportedImage, mt.String())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	name := uuid.NewString() + ext
	dst, err := os.OpenFile(filepath.Join(target, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	return name, nil
}

// Remove deletes files previously returned by SaveImages.
func (u *Uploader) Remove(paths []string) {
	for _, p := range paths {
		_ = os.Remove(filepath.Join(u.dir, "products", filepath.Base(p)))
	}
}
