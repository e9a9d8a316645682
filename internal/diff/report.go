package diff

// ChangeKind classifies one recorded difference.
type ChangeKind string

const (
	ModuleAdded   ChangeKind = "module-added"
	ModuleRemoved ChangeKind = "module-removed"
	ModuleChanged ChangeKind = "module-changed"
	ItemAdded     ChangeKind = "item-added"
	ItemRemoved   ChangeKind = "item-removed"
	ItemChanged   ChangeKind = "item-changed"
	FieldAdded    ChangeKind = "field-added"
	FieldRemoved  ChangeKind = "field-removed"
	FieldChanged  ChangeKind = "field-changed"
)

// Change is one difference, in the order it was found. Module is the
// matched module key; nested modules and trait or impl members extend it
// with "::name".
type Change struct {
	Kind   ChangeKind `json:"kind"`
	Module string     `json:"module"`
	Item   string     `json:"item,omitempty"`
	Field  string     `json:"field,omitempty"`
	// Key is the first differing descriptor key of a changed item or field.
	Key    string `json:"key,omitempty"`
	Before any    `json:"before,omitempty"`
	After  any    `json:"after,omitempty"`
}

// Report counts module and item differences. Field changes are recorded
// in Changes but only count through the item that holds them.
type Report struct {
	ModulesAdded   int      `json:"modules_added"`
	ModulesRemoved int      `json:"modules_removed"`
	ModulesChanged int      `json:"modules_changed"`
	ItemsAdded     int      `json:"items_added"`
	ItemsRemoved   int      `json:"items_removed"`
	ItemsChanged   int      `json:"items_changed"`
	Changes        []Change `json:"changes"`
}

// HasChanges reports whether any counter is non-zero.
func (r *Report) HasChanges() bool {
	return r.ModulesAdded+r.ModulesRemoved+r.ModulesChanged+
		r.ItemsAdded+r.ItemsRemoved+r.ItemsChanged > 0
}

func (r *Report) record(c Change) {
	switch c.Kind {
	case ModuleAdded:
		r.ModulesAdded++
	case ModuleRemoved:
		r.ModulesRemoved++
	case ModuleChanged:
		r.ModulesChanged++
	case ItemAdded:
		r.ItemsAdded++
	case ItemRemoved:
		r.ItemsRemoved++
	case ItemChanged:
		r.ItemsChanged++
	}
	r.Changes = append(r.Changes, c)
}
