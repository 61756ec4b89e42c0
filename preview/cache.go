package preview

import (
	"container/list"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/divanvisagie/Photograph"
)

// DefaultCacheCapacity is how many rendered previews the session keeps.
// Scrubbing a slider back and forth revisits recent states, so a small
// window covers most hits.
const DefaultCacheCapacity = 24

// Cache is an LRU of rendered previews keyed by edit state signature and
// source dimensions. Entries are zstd-compressed; rendered previews are
// mostly smooth photographic data and compress to a fraction of raw rgba.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[cacheKey]*list.Element

	enc *zstd.Encoder
	dec *zstd.Decoder

	hits   uint64
	misses uint64
}

type cacheKey struct {
	signature uint64
	srcW      int
	srcH      int
}

type cacheEntry struct {
	key        cacheKey
	w, h       int
	compressed []byte
}

// NewCache returns a cache holding up to capacity entries; capacity <= 0
// uses DefaultCacheCapacity.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[cacheKey]*list.Element),
		enc:      enc,
		dec:      dec,
	}, nil
}

// Get returns the cached render for the state applied to a source of the
// given dimensions, or nil on a miss.
func (c *Cache) Get(state *photograph.EditState, srcW, srcH int) *photograph.Image {
	key := cacheKey{signature: state.Signature(), srcW: srcW, srcH: srcH}

	c.mu.Lock()
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		c.mu.Unlock()
		return nil
	}
	c.order.MoveToFront(el)
	ent := el.Value.(*cacheEntry)
	c.hits++
	c.mu.Unlock()

	raw, err := c.dec.DecodeAll(ent.compressed, make([]byte, 0, ent.w*ent.h*4))
	if err != nil || len(raw) != ent.w*ent.h*4 {
		// Corrupt entry; treat as a miss and drop it.
		c.mu.Lock()
		if el, ok := c.entries[key]; ok {
			c.order.Remove(el)
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil
	}
	img, err := photograph.NewImageFrom(ent.w, ent.h, raw)
	if err != nil {
		return nil
	}
	return img
}

// Put stores a rendered preview, evicting the least recently used entry
// when full.
func (c *Cache) Put(state *photograph.EditState, srcW, srcH int, img *photograph.Image) {
	key := cacheKey{signature: state.Signature(), srcW: srcW, srcH: srcH}
	compressed := c.enc.EncodeAll(img.Pix(), nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		ent := el.Value.(*cacheEntry)
		ent.w, ent.h = img.Width(), img.Height()
		ent.compressed = compressed
		return
	}
	el := c.order.PushFront(&cacheEntry{
		key: key, w: img.Width(), h: img.Height(), compressed: compressed,
	})
	c.entries[key] = el
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached previews.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Close releases the compressor resources.
func (c *Cache) Close() {
	c.enc.Close()
	c.dec.Close()
}
