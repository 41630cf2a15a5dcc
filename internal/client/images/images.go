// Package images resolves the opaque image handles stored on queued uploads
// into readable content. Supported handles are plain paths, file:// URIs and
// s3://bucket/key URIs.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedRef = errors.New("unsupported image reference")
	ErrImageNotFound  = errors.New("image not found")
)

// Image is an opened receipt image. The caller closes Content.
type Image struct {
	Name    string
	Content io.ReadCloser
}

type Opener interface {
	Open(ctx context.Context, ref string) (*Image, error)
}

// LocalOpener reads images from the device file system.
type LocalOpener struct{}

func (LocalOpener) Open(_ context.Context, ref string) (*Image, error) {
	p := ref
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
		}
		p = u.Path
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, ref)
		}
		return nil, fmt.Errorf("open image: %w", err)
	}
	return &Image{Name: filepath.Base(p), Content: f}, nil
}

// Router dispatches on the URI scheme of the handle. Handles without a
// scheme go to the local opener.
type Router struct {
	local  Opener
	byName map[string]Opener
}

func NewRouter(local Opener) *Router {
	if local == nil {
		local = LocalOpener{}
	}
	return &Router{local: local, byName: map[string]Opener{"file": local}}
}

// Handle registers o for handles with the given scheme.
func (r *Router) Handle(scheme string, o Opener) *Router {
	r.byName[scheme] = o
	return r
}

func (r *Router) Open(ctx context.Context, ref string) (*Image, error) {
	scheme, _, found := strings.Cut(ref, "://")
	if !found {
		return r.local.Open(ctx, ref)
	}
	o, ok := r.byName[strings.ToLower(scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	return o.Open(ctx, ref)
}

func baseName(key string) string {
	return path.Base(key)
}
