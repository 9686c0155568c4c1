package assets

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/JonMunkholm/PostImport/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type countingServer struct {
	*httptest.Server
	gets  atomic.Int32
	heads atomic.Int32
}

func newServer(t *testing.T, handler http.HandlerFunc) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cs.gets.Add(1)
		case http.MethodHead:
			cs.heads.Add(1)
		}
		handler(w, r)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func newFetcher(t *testing.T, cfg FetcherConfig) (*Fetcher, *memory.Assets) {
	t.Helper()
	store := memory.NewAssets(NewDiskBlobs(t.TempDir()))
	f := NewFetcher(store, cfg, nil)
	f.now = func() time.Time { return time.Unix(1700000000, 0) }
	return f, store
}

func TestResolve_FetchesAndStores(t *testing.T) {
	img := pngBytes(t, 4, 3)
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(img)
	})
	f, store := newFetcher(t, FetcherConfig{MaxBytes: 1 << 20})

	asset, err := f.Resolve(context.Background(), srv.URL+"/photos/img.png", 7)
	require.NoError(t, err)

	assert.Equal(t, "img", asset.DerivedName)
	assert.Equal(t, "img.png", asset.Filename)
	assert.Equal(t, "image/png", asset.MimeType)
	assert.Equal(t, srv.URL+"/photos/img.png", asset.GUID)
	assert.Equal(t, int64(len(img)), asset.Size)

	stored, err := store.FindByDerivedName(context.Background(), "img")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Width)
	assert.Equal(t, 3, stored.Height)
}

func TestResolve_DedupByDerivedName(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	f, store := newFetcher(t, FetcherConfig{})
	ctx := context.Background()

	first, err := f.Resolve(ctx, srv.URL+"/a/img.jpg", 1)
	require.NoError(t, err)
	second, err := f.Resolve(ctx, srv.URL+"/b/IMG.jpeg?x=1", 2)
	require.NoError(t, err)
	third, err := f.Resolve(ctx, "http://unreachable.invalid/img.gif", 3)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ID, third.ID)
	assert.EqualValues(t, 1, srv.gets.Load())
	assert.Equal(t, 1, store.Len())
}

func TestResolve_SynthesizedFilename(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	})
	f, _ := newFetcher(t, FetcherConfig{})

	asset, err := f.Resolve(context.Background(), srv.URL+"/render?id=5", 42)
	require.NoError(t, err)
	assert.Equal(t, "image-42-1700000000.jpg", asset.Filename)
	assert.Equal(t, "image/jpeg", asset.MimeType)
	assert.Equal(t, "render", asset.DerivedName)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FetcherConfig
		handler http.HandlerFunc
		path    string
		rawURL  string
		want    core.FetchErrorKind
	}{
		{name: "relative url", rawURL: "/img.jpg", want: core.FetchInvalidURL},
		{name: "ftp scheme", rawURL: "ftp://example.com/img.jpg", want: core.FetchInvalidURL},
		{name: "missing host", rawURL: "http:///img.jpg", want: core.FetchInvalidURL},
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
			path:    "/missing.jpg",
			want:    core.FetchUnreachable,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			path:    "/broken.jpg",
			want:    core.FetchUnreachable,
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			path:    "/empty.jpg",
			want:    core.FetchEmptyBody,
		},
		{
			name:    "too large",
			cfg:     FetcherConfig{MaxBytes: 4},
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("12345")) },
			path:    "/big.jpg",
			want:    core.FetchTooLarge,
		},
		{
			name: "head check rejects",
			cfg:  FetcherConfig{HeadCheck: true},
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodHead {
					w.WriteHeader(http.StatusGone)
					return
				}
				_, _ = w.Write([]byte("x"))
			},
			path: "/gone.jpg",
			want: core.FetchUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rawURL := tt.rawURL
			if tt.handler != nil {
				rawURL = newServer(t, tt.handler).URL + tt.path
			}
			f, store := newFetcher(t, tt.cfg)

			_, err := f.Resolve(context.Background(), rawURL, 1)
			require.Error(t, err)
			assert.Equal(t, tt.want, core.FetchKind(err))
			assert.Zero(t, store.Len())
		})
	}
}

func TestResolve_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	f, _ := newFetcher(t, FetcherConfig{})
	_, err := f.Resolve(context.Background(), addr+"/img.jpg", 1)
	assert.Equal(t, core.FetchNetwork, core.FetchKind(err))
}

func TestResolve_HeadMethodNotAllowedFallsThrough(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write([]byte("x"))
	})
	f, _ := newFetcher(t, FetcherConfig{HeadCheck: true})

	_, err := f.Resolve(context.Background(), srv.URL+"/ok.jpg", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.heads.Load())
	assert.EqualValues(t, 1, srv.gets.Load())
}

func TestResolve_SendsUserAgent(t *testing.T) {
	var got atomic.Value
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.UserAgent())
		_, _ = w.Write([]byte("x"))
	})
	f, _ := newFetcher(t, FetcherConfig{UserAgent: "post-import/1.0"})

	_, err := f.Resolve(context.Background(), srv.URL+"/ua.jpg", 1)
	require.NoError(t, err)
	assert.Equal(t, "post-import/1.0", got.Load())
}
