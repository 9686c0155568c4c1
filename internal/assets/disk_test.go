package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskBlobs_PutUniqueNames(t *testing.T) {
	root := t.TempDir()
	d := NewDiskBlobs(root)
	d.now = func() time.Time { return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first, err := d.Put(ctx, "img.jpg", []byte("a"))
	require.NoError(t, err)
	second, err := d.Put(ctx, "img.jpg", []byte("b"))
	require.NoError(t, err)

	assert.Equal(t, "2026/03/img.jpg", first)
	assert.Equal(t, "2026/03/img-1.jpg", second)

	data, err := os.ReadFile(filepath.Join(root, "2026", "03", "img-1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestDiskBlobs_PutStripsDirectories(t *testing.T) {
	d := NewDiskBlobs(t.TempDir())
	d.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	p, err := d.Put(context.Background(), "../../etc/passwd.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "2026/01/passwd.png", p)
}

func TestDiskBlobs_Dimensions(t *testing.T) {
	d := NewDiskBlobs(t.TempDir())
	ctx := context.Background()

	p, err := d.Put(ctx, "pic.png", pngBytes(t, 10, 20))
	require.NoError(t, err)
	w, h, err := d.Dimensions(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 10, w)
	assert.Equal(t, 20, h)

	bad, err := d.Put(ctx, "bad.jpg", []byte("not an image"))
	require.NoError(t, err)
	_, _, err = d.Dimensions(ctx, bad)
	assert.Error(t, err)
}
