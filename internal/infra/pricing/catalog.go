// Package pricing serves the server-side price table. Clients never supply
// prices; checkout requests are checked against these entries.
package pricing

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"ai-image-billing/internal/domain/model"
	"ai-image-billing/internal/domain/ports/adapter"
)

//go:embed locales
var LocalesFS embed.FS

var _ adapter.PriceTableProvider = (*Catalog)(nil)

// Catalog loads <locale>.yaml files lazily and keeps them for the process
// lifetime. Unknown locales fall back to the default one.
type Catalog struct {
	fsys          fs.FS
	defaultLocale string

	mu     sync.RWMutex
	tables map[string][]model.PriceEntry
}

// NewCatalog reads from fsys, which must contain a locales/ directory.
func NewCatalog(fsys fs.FS, defaultLocale string) (*Catalog, error) {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	c := &Catalog{fsys: fsys, defaultLocale: normalizeLocale(defaultLocale), tables: map[string][]model.PriceEntry{}}
	// The default table must exist; fail at startup rather than on first checkout.
	if _, err := c.load(c.defaultLocale); err != nil {
		return nil, err
	}
	return c, nil
}

// NewCatalogFromDir uses dir/locales/*.yaml when dir is set and the embedded
// tables otherwise.
func NewCatalogFromDir(dir, defaultLocale string) (*Catalog, error) {
	if dir == "" {
		return NewCatalog(LocalesFS, defaultLocale)
	}
	return NewCatalog(os.DirFS(dir), defaultLocale)
}

func (c *Catalog) GetPriceTable(ctx context.Context, locale string) ([]model.PriceEntry, error) {
	loc := normalizeLocale(locale)
	if loc == "" {
		loc = c.defaultLocale
	}
	table, err := c.load(loc)
	if err != nil && loc != c.defaultLocale {
		table, err = c.load(c.defaultLocale)
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.PriceEntry, len(table))
	copy(out, table)
	return out, nil
}

func (c *Catalog) load(locale string) ([]model.PriceEntry, error) {
	c.mu.RLock()
	t, ok := c.tables[locale]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	p := path.Join("locales", locale+".yaml")
	data, err := fs.ReadFile(c.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read price table %s: %w", p, err)
	}
	t, err = parseTable(data)
	if err != nil {
		return nil, fmt.Errorf("price table %s: %w", p, err)
	}

	c.mu.Lock()
	c.tables[locale] = t
	c.mu.Unlock()
	return t, nil
}

// parseTable decodes and validates one table.
func parseTable(data []byte) ([]model.PriceEntry, error) {
	var entries []model.PriceEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	seen := make(map[string]bool, len(entries))
	for i := range entries {
		e := &entries[i]
		e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
		switch {
		case e.ProductID == "":
			return nil, fmt.Errorf("entry %d: product_id is required", i)
		case seen[e.ProductID]:
			return nil, fmt.Errorf("entry %s: duplicate product_id", e.ProductID)
		case e.ProductName == "":
			return nil, fmt.Errorf("entry %s: product_name is required", e.ProductID)
		case e.Amount < 0:
			return nil, fmt.Errorf("entry %s: negative amount", e.ProductID)
		case e.Currency == "":
			return nil, fmt.Errorf("entry %s: currency is required", e.ProductID)
		case !e.Interval.Valid():
			return nil, fmt.Errorf("entry %s: invalid interval %q", e.ProductID, e.Interval)
		}
		if want, ok := e.Interval.ExpectedValidMonths(); ok && e.ValidMonths != want {
			return nil, fmt.Errorf("entry %s: interval %s requires valid_months %d", e.ProductID, e.Interval, want)
		}
		seen[e.ProductID] = true
	}
	return entries, nil
}

// normalizeLocale maps "zh-CN", "zh_TW" and "ZH" to "zh".
func normalizeLocale(l string) string {
	l = strings.ToLower(strings.TrimSpace(l))
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	return l
}
