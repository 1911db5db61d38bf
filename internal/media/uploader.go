// Package media uploads variant images to object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
)

// ObjectStore is the subset of an S3-compatible client used for images.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
}

// Config controls upload limits.
type Config struct {
	// Timeout bounds the whole upload of one image set.
	Timeout time.Duration
	// Concurrency is the number of files uploaded in parallel.
	Concurrency int
	// CleanupAttempts is how many times removal of a key is tried.
	CleanupAttempts int
}

var _ variant.ImageStore = (*Uploader)(nil)

// Uploader stores image sets all-or-nothing.
type Uploader struct {
	store ObjectStore
	cfg   Config
}

// NewUploader creates an Uploader.
func NewUploader(store ObjectStore, cfg Config) *Uploader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.CleanupAttempts <= 0 {
		cfg.CleanupAttempts = 3
	}
	return &Uploader{store: store, cfg: cfg}
}

// Upload stores every image in parallel as one blocking step. If any file
// fails, or the set does not finish within the timeout, the files already
// stored are removed and an error is returned.
func (u *Uploader) Upload(ctx context.Context, productID string, images variant.Images) (*variant.UploadedImages, error) {
	all := append([]variant.Image{images.Main}, images.Secondary...)
	keys := make([]string, len(all))
	for i, img := range all {
		keys[i] = objectKey(productID, img)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, u.cfg.Timeout)
	defer cancel()

	done := make([]bool, len(all))
	g, gctx := errgroup.WithContext(uploadCtx)
	g.SetLimit(u.cfg.Concurrency)
	for i, img := range all {
		g.Go(func() error {
			if err := u.store.Put(gctx, keys[i], img.Body, img.Size, img.ContentType); err != nil {
				return errors.Wrapf(err, "put %s", img.Filename)
			}
			done[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var stored []string
		for i, ok := range done {
			if ok {
				stored = append(stored, keys[i])
			}
		}
		u.cleanup(ctx, stored)

		if errors.Is(uploadCtx.Err(), context.DeadlineExceeded) {
			return nil, &catalog.UpstreamTimeoutError{Op: "upload images", Timeout: u.cfg.Timeout, Err: err}
		}
		return nil, err
	}

	return &variant.UploadedImages{Main: keys[0], Secondary: keys[1:]}, nil
}

// Remove deletes stored images, retrying each key with backoff.
func (u *Uploader) Remove(ctx context.Context, refs []string) error {
	var failed []string
	for _, key := range refs {
		if key == "" {
			continue
		}
		if err := u.removeWithRetry(ctx, key); err != nil {
			failed = append(failed, key)
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("remove %d of %d images: %s", len(failed), len(refs), strings.Join(failed, ", "))
	}
	return nil
}

// cleanup runs detached from the caller's deadline, which may have expired.
func (u *Uploader) cleanup(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.Timeout)
	defer cancel()

	if err := u.Remove(ctx, keys); err != nil {
		zctx.From(ctx).Error("Clean up partially uploaded images", zap.Error(err))
	}
}

func (u *Uploader) removeWithRetry(ctx context.Context, key string) error {
	var err error
	for attempt := range u.cfg.CleanupAttempts {
		if err = u.store.Remove(ctx, key); err == nil {
			return nil
		}
		if attempt == u.cfg.CleanupAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return err
}

// backoff returns an exponential delay with up to 50% jitter.
func backoff(attempt int) time.Duration {
	base := 50 * time.Millisecond << attempt
	return base + rand.N(base/2+1)
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/avif": ".avif",
}

// AllowedContentType reports whether images of contentType are accepted.
func AllowedContentType(contentType string) bool {
	_, ok := extensions[strings.ToLower(contentType)]
	return ok
}

func objectKey(productID string, img variant.Image) string {
	ext, ok := extensions[strings.ToLower(img.ContentType)]
	if !ok {
		ext = strings.ToLower(path.Ext(img.Filename))
	}
	return fmt.Sprintf("products/%s/%s%s", productID, uuid.NewString(), ext)
}
