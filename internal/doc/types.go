package doc

// DocumentID is the fixed identifier under which the one catalog document
// is persisted. There is never more than one document per database.
const DocumentID = "kardex-catalog-v1"

// BannerID is a sentinel product identifier used by catalog front-ends
// for a pinned banner card. It is seeded into IgnoredProductIDs so it
// never shows up in regular listings.
const BannerID = "banner"

// Document is the single shared catalog document. Every field is owned by
// the replicated store and may only be mutated inside a Change call.
type Document struct {
	Products          []Product             `json:"products"`
	Preferences       Preferences           `json:"preferences"`
	IgnoredProductIDs []string              `json:"ignored_product_ids"`
	AllCategories     []string              `json:"all_categories"`
	Movements         map[string][]Movement `json:"movements"` // variant id -> ledger
	ManualMovements   []ManualMovement      `json:"manual_movements"`
	AuditLog          []AuditEntry          `json:"audit_log"` // newest first
}

// Preferences holds user display settings. Created with defaults at
// document initialization, mutated field by field, never deleted.
type Preferences struct {
	ViewMode       string `json:"view_mode"` // "grid" | "list"
	SearchTerm     string `json:"search_term"`
	CategoryFilter string `json:"category_filter"`
	ShowIgnored    bool   `json:"show_ignored"`
	CompactRows    bool   `json:"compact_rows"`
}

// Product is one catalog entry. A product always carries at least one
// variant; single-variant products use the synthetic "Único" variant.
type Product struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Images      []string  `json:"images,omitempty"`
	ImageHint   []string  `json:"image_hint,omitempty"` // tag set, unique
	Variants    []Variant `json:"variants"`
}

// Variant is one sellable variation of a product. Stock is derived: it
// must equal the replay of the variant's movement ledger.
type Variant struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	SKU       string   `json:"sku,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
	Stock     int      `json:"stock"`
	ItemCount *int     `json:"item_count,omitempty"` // units per multi-pack
}

// MovementType tags a stock movement.
type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementStockIn    MovementType = "stock_in"
	MovementAdjustment MovementType = "adjustment"
	MovementInitial    MovementType = "initial"
)

// ValidMovementTypes defines the allowed movement types.
var ValidMovementTypes = map[MovementType]bool{
	MovementSale:       true,
	MovementStockIn:    true,
	MovementAdjustment: true,
	MovementInitial:    true,
}

// Movement is one stock-affecting event in a variant's ledger.
//
// NewStock caches the replay result at write time. It is immutable once
// written, except during the bulk recompute that follows a retroactive
// deletion. SalePrice and SaleCost are snapshots captured only for Sale
// movements so that historical profit never drifts when the variant's
// price is edited later.
type Movement struct {
	ID        string       `json:"id"`
	VariantID string       `json:"variant_id"`
	Timestamp int64        `json:"timestamp"` // ms epoch
	Type      MovementType `json:"type"`
	Change    int          `json:"change"` // signed units
	NewStock  int          `json:"new_stock"`
	Notes     string       `json:"notes,omitempty"`
	SalePrice *float64     `json:"sale_price,omitempty"`
	SaleCost  *float64     `json:"sale_cost,omitempty"`
}

// ManualMovementType tags a manual financial movement.
type ManualMovementType string

const (
	ManualExpense     ManualMovementType = "expense"
	ManualInvestment  ManualMovementType = "investment"
	ManualOtherIncome ManualMovementType = "other_income"
)

// ValidManualMovementTypes defines the allowed manual movement types.
var ValidManualMovementTypes = map[ManualMovementType]bool{
	ManualExpense:     true,
	ManualInvestment:  true,
	ManualOtherIncome: true,
}

// ManualMovement is a financial event independent of any variant.
// Amount is signed: positive is income, negative is outlay.
type ManualMovement struct {
	ID          string             `json:"id"`
	Timestamp   int64              `json:"timestamp"` // ms epoch
	Type        ManualMovementType `json:"type"`
	Amount      float64            `json:"amount"`
	Description string             `json:"description"`
}

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // ms epoch
	Type      string `json:"type"`      // "product_add", "product_edit", ...
	Message   string `json:"message"`
}

// FindProduct returns a pointer to the product with the given id, or nil.
func (d *Document) FindProduct(id string) *Product {
	for i := range d.Products {
		if d.Products[i].ID == id {
			return &d.Products[i]
		}
	}
	return nil
}

// FindVariant returns pointers to the variant with the given id and its
// owning product, or (nil, nil) if no product carries it.
func (d *Document) FindVariant(variantID string) (*Product, *Variant) {
	for i := range d.Products {
		for j := range d.Products[i].Variants {
			if d.Products[i].Variants[j].ID == variantID {
				return &d.Products[i], &d.Products[i].Variants[j]
			}
		}
	}
	return nil, nil
}

// AppendAudit prepends an entry to the audit log (newest first).
func (d *Document) AppendAudit(e AuditEntry) {
	d.AuditLog = append([]AuditEntry{e}, d.AuditLog...)
}

// EnsureCategory adds the category to AllCategories if not yet present.
// Empty categories are ignored.
func (d *Document) EnsureCategory(category string) {
	if category == "" {
		return
	}
	for _, c := range d.AllCategories {
		if c == category {
			return
		}
	}
	d.AllCategories = append(d.AllCategories, category)
}

// Ledger returns the movement ledger for a variant. The returned slice
// aliases document state; callers outside a Change call must copy.
func (d *Document) Ledger(variantID string) []Movement {
	return d.Movements[variantID]
}
