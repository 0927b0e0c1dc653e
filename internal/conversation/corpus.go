package conversation

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// defaultCorpusEntries seed the fallback corpus when no FAQ file is
// configured so the pipeline still has something to ground answers on.
var defaultCorpusEntries = []string{
	"Jam operasional toko: Senin sampai Minggu, pukul 09.00 sampai 21.00 WIB.",
	"Alamat toko pusat: Jalan Sudirman No. 45, Jakarta Selatan.",
	"Layanan pengiriman tersedia ke seluruh Indonesia melalui kurir rekanan.",
	"Promo berjalan dapat dilihat di halaman promo situs resmi kami.",
	"Harga produk mengikuti daftar harga terbaru di katalog online.",
	"Penukaran barang dapat dilakukan maksimal 7 hari setelah barang diterima.",
}

// FallbackCorpus is the static context source used when no knowledge base
// or vector index is configured. Matching is plain keyword overlap; it is
// deliberately cheap and deterministic.
type FallbackCorpus struct {
	entries []string
}

// NewFallbackCorpus returns a corpus with the built-in entries.
func NewFallbackCorpus() *FallbackCorpus {
	return &FallbackCorpus{entries: defaultCorpusEntries}
}

// LoadFallbackCorpus reads corpus entries from a file, split on blank lines
// the same way the FAQ ingestion script chunks its source.
func LoadFallbackCorpus(path string) (*FallbackCorpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("conversation: read corpus file: %w", err)
	}

	var entries []string
	for _, segment := range strings.Split(string(data), "\n\n") {
		segment = strings.TrimSpace(segment)
		if segment != "" {
			entries = append(entries, segment)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("conversation: corpus file %s has no entries", path)
	}
	return &FallbackCorpus{entries: entries}, nil
}

// Len reports how many entries the corpus holds.
func (c *FallbackCorpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns a copy of the corpus entries, for seeding other indexes.
func (c *FallbackCorpus) Entries() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}

// Match returns up to limit entries sharing at least one word with the
// query, most overlapping first. Returns nil when nothing overlaps.
func (c *FallbackCorpus) Match(query string, limit int) []ContextSnippet {
	if c == nil || len(c.entries) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 3
	}

	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil
	}

	type scoredEntry struct {
		entry   string
		overlap int
	}
	var matches []scoredEntry
	for _, entry := range c.entries {
		lowered := strings.ToLower(entry)
		overlap := 0
		for _, word := range words {
			if len(word) < 3 {
				continue
			}
			if strings.Contains(lowered, word) {
				overlap++
			}
		}
		if overlap > 0 {
			matches = append(matches, scoredEntry{entry: entry, overlap: overlap})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].overlap > matches[j].overlap
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]ContextSnippet, 0, len(matches))
	for _, m := range matches {
		out = append(out, ContextSnippet{Source: "corpus", Text: m.entry})
	}
	return out
}
