package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/JonMunkholm/PostImport/internal/logging"
)

// Fetch results reported to metrics.
const (
	ResultReused  = "reused"
	ResultFetched = "fetched"
)

// FetcherConfig controls remote downloads.
type FetcherConfig struct {
	Timeout   time.Duration
	HeadCheck bool
	MaxBytes  int64
	UserAgent string
}

// Fetcher resolves image URLs to stored assets. It implements
// core.AssetResolver.
type Fetcher struct {
	client  *http.Client
	store   core.AssetStore
	cfg     FetcherConfig
	metrics core.Metrics
	now     func() time.Time
}

// NewFetcher returns a Fetcher storing into store. A nil metrics discards
// events.
func NewFetcher(store core.AssetStore, cfg FetcherConfig, metrics core.Metrics) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Fetcher{
		client:  &http.Client{},
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
	}
}

// Resolve returns the asset for rawURL, downloading it only when no asset
// with the same derived name exists.
func (f *Fetcher) Resolve(ctx context.Context, rawURL string, recordID int64) (*core.Asset, error) {
	derived := DerivedName(rawURL)
	if derived != "" {
		existing, err := f.store.FindByDerivedName(ctx, derived)
		if err == nil {
			f.metrics.AssetResolved(ResultReused)
			return existing, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, f.fail(core.FetchStore, rawURL, err)
		}
	}

	u, err := validateURL(rawURL)
	if err != nil {
		return nil, f.fail(core.FetchInvalidURL, rawURL, err)
	}

	data, err := f.download(ctx, u)
	if err != nil {
		return nil, err
	}

	filename := f.filename(u, recordID)
	if derived == "" {
		derived = Slugify(filename[:len(filename)-len(path.Ext(filename))])
	}

	asset, err := f.store.Store(ctx, core.NewAsset{
		Data:        data,
		Filename:    filename,
		GUID:        rawURL,
		DerivedName: derived,
		MimeType:    MimeType(filename),
		RecordID:    recordID,
	})
	if err != nil {
		return nil, f.fail(core.FetchStore, rawURL, err)
	}

	if err := f.store.GenerateMetadata(ctx, asset.ID); err != nil {
		logging.WithFields(ctx, "asset_id", asset.ID).Warn("asset metadata generation failed", "error", err)
	}

	f.metrics.AssetResolved(ResultFetched)
	return asset, nil
}

func (f *Fetcher) download(ctx context.Context, u *url.URL) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	if f.cfg.HeadCheck {
		resp, err := f.do(ctx, http.MethodHead, u)
		if err != nil {
			return nil, f.fail(core.FetchNetwork, u.String(), err)
		}
		resp.Body.Close()
		// 405 means HEAD is unsupported, not that the asset is missing.
		if resp.StatusCode != http.StatusMethodNotAllowed && !success(resp.StatusCode) {
			return nil, f.fail(core.FetchUnreachable, u.String(), fmt.Errorf("HEAD status %d", resp.StatusCode))
		}
	}

	resp, err := f.do(ctx, http.MethodGet, u)
	if err != nil {
		return nil, f.fail(core.FetchNetwork, u.String(), err)
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return nil, f.fail(core.FetchUnreachable, u.String(), fmt.Errorf("status %d", resp.StatusCode))
	}

	body := io.Reader(resp.Body)
	if f.cfg.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, f.fail(core.FetchNetwork, u.String(), err)
	}
	if f.cfg.MaxBytes > 0 && int64(len(data)) > f.cfg.MaxBytes {
		return nil, f.fail(core.FetchTooLarge, u.String(), fmt.Errorf("body exceeds %d bytes", f.cfg.MaxBytes))
	}
	if len(data) == 0 {
		return nil, f.fail(core.FetchEmptyBody, u.String(), nil)
	}
	return data, nil
}

func (f *Fetcher) do(ctx context.Context, method string, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	return f.client.Do(req)
}

// filename keeps the URL basename when it is a recognized image name and
// otherwise synthesizes one from the record id and the current time.
func (f *Fetcher) filename(u *url.URL, recordID int64) string {
	if base := path.Base(u.Path); IsImageFilename(base) {
		return base
	}
	return fmt.Sprintf("image-%d-%d.jpg", recordID, f.now().Unix())
}

func (f *Fetcher) fail(kind core.FetchErrorKind, rawURL string, err error) error {
	f.metrics.AssetResolved(string(kind))
	return &core.FetchError{Kind: kind, URL: rawURL, Err: err}
}

func validateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func success(code int) bool {
	return code >= 200 && code < 300
}
