package doc

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// NewID mints a fresh globally unique identifier for any document record.
func NewID() string {
	return uuid.NewString()
}

// DefaultCategories is the fixed initial category list seeded into a
// fresh document. AllCategories only grows from here, except on a full
// reset.
func DefaultCategories() []string {
	return []string{"Ropa", "Accesorios", "Juguetes", "Higiene", "Otros"}
}

// DefaultPreferences returns the display settings a fresh document starts
// with.
func DefaultPreferences() Preferences {
	return Preferences{ViewMode: "grid"}
}

// SeedIgnoredIDs returns the initial ignored-product set for a fresh
// document.
func SeedIgnoredIDs() []string {
	return []string{BannerID}
}

// NewDocument builds a fully seeded empty document.
func NewDocument() *Document {
	return &Document{
		Products:          []Product{},
		Preferences:       DefaultPreferences(),
		IgnoredProductIDs: SeedIgnoredIDs(),
		AllCategories:     DefaultCategories(),
		Movements:         map[string][]Movement{},
		ManualMovements:   []ManualMovement{},
		AuditLog:          []AuditEntry{},
	}
}

// NormalizeTitle returns the NFC-normalized, whitespace-trimmed form of a
// product title. Titles arrive from imports in mixed normalization forms
// (accented Spanish text pasted from different sources); comparing and
// deduplicating on the normalized form keeps merge name disambiguation
// stable.
func NormalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}

// FirstTitleWord returns the first word of the normalized title, used to
// disambiguate colliding variant names after a merge.
func FirstTitleWord(title string) string {
	fields := strings.Fields(NormalizeTitle(title))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
