package doc

// Clone returns a deep copy of the document. The change primitive runs
// mutators against a clone so that a failed mutator leaves no partial
// state behind, and the materializer copies again on the way out so
// render-side consumers can never alias replicated state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}

	out := &Document{
		Preferences:       d.Preferences,
		IgnoredProductIDs: cloneStrings(d.IgnoredProductIDs),
		AllCategories:     cloneStrings(d.AllCategories),
		ManualMovements:   cloneManualMovements(d.ManualMovements),
		AuditLog:          cloneAuditLog(d.AuditLog),
	}

	if d.Products != nil {
		out.Products = make([]Product, len(d.Products))
		for i := range d.Products {
			out.Products[i] = d.Products[i].Clone()
		}
	}

	if d.Movements != nil {
		out.Movements = make(map[string][]Movement, len(d.Movements))
		for variantID, ledger := range d.Movements {
			out.Movements[variantID] = CloneLedger(ledger)
		}
	}

	return out
}

// Clone returns a deep copy of the product.
func (p Product) Clone() Product {
	out := p
	out.Images = cloneStrings(p.Images)
	out.ImageHint = cloneStrings(p.ImageHint)
	if p.Variants != nil {
		out.Variants = make([]Variant, len(p.Variants))
		for i := range p.Variants {
			out.Variants[i] = p.Variants[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the variant (pointer fields re-boxed).
func (v Variant) Clone() Variant {
	out := v
	out.Price = cloneFloat(v.Price)
	out.Cost = cloneFloat(v.Cost)
	out.ItemCount = cloneInt(v.ItemCount)
	return out
}

// Clone returns a deep copy of the movement (snapshot pointers re-boxed).
func (m Movement) Clone() Movement {
	out := m
	out.SalePrice = cloneFloat(m.SalePrice)
	out.SaleCost = cloneFloat(m.SaleCost)
	return out
}

// CloneLedger deep-copies one variant's movement ledger.
func CloneLedger(ledger []Movement) []Movement {
	if ledger == nil {
		return nil
	}
	out := make([]Movement, len(ledger))
	for i := range ledger {
		out[i] = ledger[i].Clone()
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneManualMovements(in []ManualMovement) []ManualMovement {
	if in == nil {
		return nil
	}
	out := make([]ManualMovement, len(in))
	copy(out, in)
	return out
}

func cloneAuditLog(in []AuditEntry) []AuditEntry {
	if in == nil {
		return nil
	}
	out := make([]AuditEntry, len(in))
	copy(out, in)
	return out
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
