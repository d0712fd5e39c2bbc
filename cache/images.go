package cache

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/hashicorp/golang-lru/v2/expirable"
	_ "golang.org/x/image/webp"

	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
)

// Config bounds the image cache.
type Config struct {
	Size int           `mapstructure:"size" validate:"min=0"`
	TTL  time.Duration `mapstructure:"ttl" validate:"min=0"`
}

// ApplyDefaults fills in unset fields.
func (c *Config) ApplyDefaults() {
	if c.Size == 0 {
		c.Size = 32
	}
	if c.TTL == 0 {
		c.TTL = 10 * time.Minute
	}
}

// Stats reports cache usage.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Images is a size and age bounded cache of decoded images. It is safe for
// concurrent use.
type Images struct {
	lru    *expirable.LRU[string, image.Image]
	hits   atomic.Uint64
	misses atomic.Uint64
	log    *logger.Logger
}

// NewImages creates an image cache.
func NewImages(cfg Config) *Images {
	cfg.ApplyDefaults()
	c := &Images{log: logger.Get(logger.ComponentNodes)}
	c.lru = expirable.NewLRU[string, image.Image](cfg.Size, func(key string, _ image.Image) {
		c.log.Debug("image evicted", logger.Fields("key", key))
	}, cfg.TTL)
	return c
}

// Load returns the decoded image at path, decoding it on a miss. EXIF
// orientation is applied while decoding.
func (c *Images) Load(path string) (image.Image, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.ImageIO(path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.ImageIO(path, err)
	}
	if info.IsDir() {
		return nil, errors.ImageIO(path, fmt.Errorf("path is a directory"))
	}

	key := cacheKey(abs, info)
	if img, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return img, nil
	}
	c.misses.Add(1)

	start := time.Now()
	img, err := imaging.Open(abs, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.ImageIO(path, err)
	}
	c.lru.Add(key, img)
	c.log.Debug("image decoded", logger.MergeWithDuration(logger.Fields(
		"path", abs, "width", img.Bounds().Dx(), "height", img.Bounds().Dy()), time.Since(start)))
	return img, nil
}

// Purge drops every entry.
func (c *Images) Purge() {
	c.lru.Purge()
}

// Stats returns a snapshot of the cache counters.
func (c *Images) Stats() Stats {
	return Stats{Entries: c.lru.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func cacheKey(abs string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano())
}
