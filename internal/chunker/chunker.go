package chunker

import (
	"encoding/base64"
	"fmt"

	"github.com/dgallion1/pdfchat/internal/document"
)

// DefaultMaxPages is the page budget of a single chunk.
const DefaultMaxPages = 100

// Chunk is a standalone PDF holding a contiguous page range of the source.
type Chunk struct {
	Index            int    `json:"index"`
	Title            string `json:"title"`
	PageStart        int    `json:"page_start"` // 1-indexed, inclusive
	PageEnd          int    `json:"page_end"`   // 1-indexed, inclusive
	CitationsEnabled bool   `json:"citations_enabled"`
	Data             string `json:"-"` // base64-encoded PDF
}

// Pages returns the number of pages covered by the chunk.
func (c Chunk) Pages() int {
	return c.PageEnd - c.PageStart + 1
}

// Config controls chunking behavior.
type Config struct {
	MaxPages int // Maximum pages per chunk.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxPages: DefaultMaxPages}
}

// Chunker splits PDFs into page-bounded chunks and memoises the result by
// content hash.
type Chunker struct {
	splitter Splitter
	cfg      Config
	cache    *Cache
}

func New(splitter Splitter, cfg Config) *Chunker {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &Chunker{
		splitter: splitter,
		cfg:      cfg,
		cache:    NewCache(),
	}
}

// MaxPages returns the configured page budget.
func (c *Chunker) MaxPages() int {
	return c.cfg.MaxPages
}

// Chunk loads the PDF at path and splits it. The returned hash is the
// SHA-256 of the file bytes.
func (c *Chunker) Chunk(path string) ([]Chunk, string, error) {
	src, err := document.Load(path)
	if err != nil {
		return nil, "", err
	}
	chunks, err := c.ChunkSource(src)
	if err != nil {
		return nil, "", err
	}
	return chunks, src.ContentHash, nil
}

// ChunkSource splits an already loaded document. Results for identical bytes
// are served from the cache, titled with src's name.
func (c *Chunker) ChunkSource(src *document.Source) ([]Chunk, error) {
	key := CacheKey{ContentHash: src.ContentHash, MaxPages: c.cfg.MaxPages}
	if chunks, ok := c.cache.Get(key); ok {
		for i := range chunks {
			chunks[i].Title = chunkTitle(src.Name, chunks[i].PageStart, chunks[i].PageEnd)
		}
		return chunks, nil
	}

	pageCount, err := c.splitter.PageCount(src.Data)
	if err != nil {
		return nil, fmt.Errorf("count pages of %s: %w", src.Name, err)
	}

	ranges := PageRanges(pageCount, c.cfg.MaxPages)
	chunks := make([]Chunk, 0, len(ranges))
	for i, r := range ranges {
		pdfBytes, err := c.splitter.Extract(src.Data, r.Start, r.End)
		if err != nil {
			return nil, fmt.Errorf("extract pages %d-%d of %s: %w", r.Start, r.End, src.Name, err)
		}
		chunks = append(chunks, Chunk{
			Index:            i,
			Title:            chunkTitle(src.Name, r.Start, r.End),
			PageStart:        r.Start,
			PageEnd:          r.End,
			CitationsEnabled: true,
			Data:             base64.StdEncoding.EncodeToString(pdfBytes),
		})
	}

	c.cache.Put(key, chunks)
	return chunks, nil
}

func chunkTitle(name string, start, end int) string {
	return fmt.Sprintf("%s (pages %d-%d)", name, start, end)
}

// PageRange is a 1-indexed inclusive span of pages.
type PageRange struct {
	Start int
	End   int
}

// PageRanges partitions [1, pageCount] into consecutive windows of at most
// maxPages pages. The last window may be shorter.
func PageRanges(pageCount, maxPages int) []PageRange {
	if pageCount <= 0 || maxPages <= 0 {
		return nil
	}
	ranges := make([]PageRange, 0, (pageCount+maxPages-1)/maxPages)
	for start := 0; start < pageCount; start += maxPages {
		end := min(start+maxPages, pageCount)
		ranges = append(ranges, PageRange{Start: start + 1, End: end})
	}
	return ranges
}
