package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DiskBlobs stores asset bytes under root/YYYY/MM. It implements
// core.BlobStore.
type DiskBlobs struct {
	root string
	now  func() time.Time
}

func NewDiskBlobs(root string) *DiskBlobs {
	return &DiskBlobs{root: root, now: time.Now}
}

// Put writes data under a unique name in the current month directory and
// returns the path relative to root.
func (d *DiskBlobs) Put(_ context.Context, filename string, data []byte) (string, error) {
	now := d.now()
	rel := filepath.Join(now.Format("2006"), now.Format("01"))
	dir := filepath.Join(d.root, rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + "-" + strconv.Itoa(i) + ext
		}
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create asset file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("write asset file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close asset file: %w", err)
		}
		return filepath.ToSlash(filepath.Join(rel, candidate)), nil
	}
}

// Dimensions decodes the image header of a stored file.
func (d *DiskBlobs) Dimensions(_ context.Context, path string) (int, int, error) {
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(path)))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
