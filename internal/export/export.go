// Package export renders the catalog for the outside world: a JSON
// catalog that round-trips through the import schema, a Markdown
// catalog grouped by tag, and a full-state backup stamped with
// per-collection integrity hashes.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kardexapp/kardex/internal/doc"
)

// UntaggedGroup is the Markdown group for products without tags.
const UntaggedGroup = "Sin etiqueta"

// spanishCollator orders user-facing strings the way a Spanish speaker
// expects (ñ after n, accent-insensitive ties).
func spanishCollator() *collate.Collator {
	return collate.New(language.Spanish)
}

// Catalog renders the products as an importable JSON array, ordered by
// category then title under Spanish collation.
func Catalog(d *doc.Document) ([]byte, error) {
	products := d.Clone().Products
	c := spanishCollator()
	sort.SliceStable(products, func(i, j int) bool {
		if r := c.CompareString(products[i].Category, products[j].Category); r != 0 {
			return r < 0
		}
		return c.CompareString(products[i].Title, products[j].Title) < 0
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return nil, fmt.Errorf("export: encode catalog: %w", err)
	}
	return buf.Bytes(), nil
}

// Markdown renders the catalog grouped by tag. A product appears once
// per tag it carries; products without tags land in the "Sin etiqueta"
// group, which always sorts last. Groups and titles use Spanish
// collation.
func Markdown(d *doc.Document) []byte {
	groups := make(map[string][]doc.Product)
	for _, p := range d.Products {
		if len(p.ImageHint) == 0 {
			groups[UntaggedGroup] = append(groups[UntaggedGroup], p)
			continue
		}
		for _, tag := range p.ImageHint {
			groups[tag] = append(groups[tag], p)
		}
	}

	c := spanishCollator()
	names := make([]string, 0, len(groups))
	for name := range groups {
		if name != UntaggedGroup {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return c.CompareString(names[i], names[j]) < 0
	})
	if _, ok := groups[UntaggedGroup]; ok {
		names = append(names, UntaggedGroup)
	}

	var b strings.Builder
	b.WriteString("# Catálogo\n")
	for _, name := range names {
		products := groups[name]
		sort.SliceStable(products, func(i, j int) bool {
			return c.CompareString(products[i].Title, products[j].Title) < 0
		})

		fmt.Fprintf(&b, "\n## %s\n\n", name)
		for _, p := range products {
			if p.Category != "" {
				fmt.Fprintf(&b, "- **%s** (%s)\n", p.Title, p.Category)
			} else {
				fmt.Fprintf(&b, "- **%s**\n", p.Title)
			}
			for _, v := range p.Variants {
				b.WriteString("  - " + v.Name)
				if v.SKU != "" {
					b.WriteString(" [" + v.SKU + "]")
				}
				fmt.Fprintf(&b, ": %d en stock", v.Stock)
				if v.Price != nil {
					fmt.Fprintf(&b, ", precio %.2f", *v.Price)
				}
				b.WriteString("\n")
			}
		}
	}
	return []byte(b.String())
}

// Backup is a full-state export. Hashes holds one content hash per
// top-level collection so restores can detect corruption.
type Backup struct {
	Version   int               `json:"version"`
	CreatedAt int64             `json:"created_at_ms"`
	Document  *doc.Document     `json:"document"`
	Hashes    map[string]string `json:"hashes"`
}

// BackupVersion is the current backup format version.
const BackupVersion = 1

// NewBackup snapshots a document into a stamped backup.
func NewBackup(d *doc.Document, now time.Time) (Backup, error) {
	copied := d.Clone()
	hashes, err := collectionHashes(copied)
	if err != nil {
		return Backup{}, err
	}
	return Backup{
		Version:   BackupVersion,
		CreatedAt: now.UnixMilli(),
		Document:  copied,
		Hashes:    hashes,
	}, nil
}

// MarshalBackup renders a backup as indented JSON.
func MarshalBackup(b Backup) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return nil, fmt.Errorf("export: encode backup: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseBackup decodes a backup and verifies every collection hash.
// A hash mismatch means the file was edited or truncated after export;
// the restore must not proceed.
func ParseBackup(data []byte) (*doc.Document, error) {
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("export: decode backup: %w", err)
	}
	if b.Version != BackupVersion {
		return nil, fmt.Errorf("export: unsupported backup version %d", b.Version)
	}
	if b.Document == nil {
		return nil, fmt.Errorf("export: backup has no document")
	}

	actual, err := collectionHashes(b.Document)
	if err != nil {
		return nil, err
	}
	var mismatched []string
	for domain, want := range b.Hashes {
		if actual[domain] != want {
			mismatched = append(mismatched, domain)
		}
	}
	if len(mismatched) > 0 {
		sort.Strings(mismatched)
		return nil, fmt.Errorf("export: backup integrity check failed for %s", strings.Join(mismatched, ", "))
	}
	return b.Document, nil
}

func collectionHashes(d *doc.Document) (map[string]string, error) {
	hashes := make(map[string]string, 7)
	for domain, v := range map[string]any{
		doc.DomainProducts:        d.Products,
		doc.DomainPreferences:     d.Preferences,
		doc.DomainIgnoredIDs:      d.IgnoredProductIDs,
		doc.DomainCategories:      d.AllCategories,
		doc.DomainMovements:       d.Movements,
		doc.DomainManualMovements: d.ManualMovements,
		doc.DomainAuditLog:        d.AuditLog,
	} {
		h, err := doc.CollectionHash(domain, v)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		hashes[domain] = h
	}
	return hashes, nil
}
