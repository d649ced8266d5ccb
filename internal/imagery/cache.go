// Package imagery decodes camera images and keeps recently used ones in
// memory so that moving to the next image does not wait on the backend.
package imagery

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
	"golang.org/x/sync/singleflight"

	"riistakamera/internal/annotator"
)

const DefaultCacheSize = 16

// Fetcher returns the encoded bytes of an image.
type Fetcher interface {
	GetImageBytes(ctx context.Context, imageID string) ([]byte, error)
}

// Cache is a bounded LRU of decoded images. It implements
// annotator.ImageSource. Concurrent loads of the same image share one fetch.
type Cache struct {
	fetch  Fetcher
	images *lru.Cache[string, image.Image]
	group  singleflight.Group
	log    *slog.Logger
}

var _ annotator.ImageSource = (*Cache)(nil)

func NewCache(fetch Fetcher, size int, log *slog.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if log == nil {
		log = slog.Default()
	}
	images, err := lru.New[string, image.Image](size)
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}
	return &Cache{fetch: fetch, images: images, log: log}, nil
}

// Load makes imageID available through Get and returns its size.
func (c *Cache) Load(ctx context.Context, imageID string) (annotator.Size, error) {
	img, err := c.load(ctx, imageID)
	if err != nil {
		return annotator.Size{}, err
	}
	return SizeOf(img), nil
}

func (c *Cache) load(ctx context.Context, imageID string) (image.Image, error) {
	if img, ok := c.images.Get(imageID); ok {
		return img, nil
	}
	v, err, shared := c.group.Do(imageID, func() (interface{}, error) {
		data, err := c.fetch.GetImageBytes(ctx, imageID)
		if err != nil {
			return nil, err
		}
		img, format, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", imageID, err)
		}
		c.images.Add(imageID, img)
		c.log.Debug("image decoded", "image", imageID, "format", format, "bytes", len(data))
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("image load shared", "image", imageID)
	}
	return v.(image.Image), nil
}

// Get returns a decoded image if it is cached.
func (c *Cache) Get(imageID string) (image.Image, bool) {
	return c.images.Get(imageID)
}

func (c *Cache) Len() int { return c.images.Len() }

// Decode decodes any registered format: JPEG, PNG, GIF, BMP or WebP.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

func SizeOf(img image.Image) annotator.Size {
	b := img.Bounds()
	return annotator.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}
