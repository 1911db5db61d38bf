package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/go-faster/errors"
)

// Objects is an in-process object store for images.
type Objects struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// NewObjects returns an empty object store.
func NewObjects() *Objects {
	return &Objects{objects: map[string]Object{}}
}

// Put stores body under key.
func (o *Objects) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return errors.Wrapf(err, "read %s", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = Object{ContentType: contentType, Data: buf.Bytes()}
	return nil
}

// Remove deletes key. Missing keys are not an error.
func (o *Objects) Remove(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

// Get returns the object stored under key.
func (o *Objects) Get(key string) (Object, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	obj, ok := o.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (o *Objects) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.objects)
}
