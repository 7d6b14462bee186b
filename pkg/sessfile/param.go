// SPDX-License-Identifier: MPL-2.0

package sessfile

// pythonParam is the parameter name that, when parametrized, supplies the
// interpreter instead of a call argument.
const pythonParam = "python"

type (
	// Param wraps a single parametrized value with an optional id and tags.
	Param struct {
		// Value is the parameter value.
		Value any
		// ID overrides the rendered form of the value in canonical names.
		ID string
		// Tags are added to every instance produced from this value.
		Tags []string
	}

	// Bundle is one row of a parametrization layer: the values for each key,
	// plus the id and tags contributed by Param wrappers.
	Bundle struct {
		// Values holds one value per parametrization key, in key order.
		Values []any
		// ID is the custom id for the bundle, if any.
		ID string
		// Tags are the labels contributed by this bundle.
		Tags []string
	}

	// Parametrization is one stacked layer: the parameter keys and the ordered
	// bundles of values for those keys.
	Parametrization struct {
		// Keys are the parameter names of this layer.
		Keys []string
		// Bundles are the value rows, in declaration order.
		Bundles []Bundle
	}
)

// NewParametrization builds a layer from keys and raw values. Each element of
// values provides one bundle; it may be a plain value (single key), a Param,
// or a []any of per-key values when there are multiple keys. []any rows may
// themselves contain Param wrappers; the first Param id found names the
// bundle and all Param tags are unioned.
func NewParametrization(keys []string, values []any) Parametrization {
	layer := Parametrization{Keys: keys}
	for _, v := range values {
		layer.Bundles = append(layer.Bundles, makeBundle(keys, v))
	}
	return layer
}

func makeBundle(keys []string, v any) Bundle {
	if p, ok := v.(Param); ok {
		return bundleFromRow(keys, p.Value, p.ID, p.Tags)
	}
	return bundleFromRow(keys, v, "", nil)
}

func bundleFromRow(keys []string, v any, id string, tags []string) Bundle {
	b := Bundle{ID: id, Tags: append([]string(nil), tags...)}
	if len(keys) == 1 {
		b.Values = []any{unwrapParam(v, &b)}
		return b
	}
	row, ok := v.([]any)
	if !ok {
		// Fewer values than keys is a declaration mistake; keep the single
		// value so validation can report a meaningful error downstream.
		b.Values = []any{v}
		return b
	}
	for _, cell := range row {
		b.Values = append(b.Values, unwrapParam(cell, &b))
	}
	return b
}

// unwrapParam extracts the raw value of a Param cell, folding its id and tags
// into the enclosing bundle.
func unwrapParam(v any, b *Bundle) any {
	p, ok := v.(Param)
	if !ok {
		return v
	}
	if b.ID == "" {
		b.ID = p.ID
	}
	b.Tags = append(b.Tags, p.Tags...)
	return p.Value
}

// ExpandedBundle is a fully-composed call spec produced by crossing every
// stacked parametrization layer.
type ExpandedBundle struct {
	// Spec maps parameter names to values, insertion order preserved.
	Spec *CallSpec
	// IDs holds the per-layer custom ids in stacking order; empty strings
	// mark layers without an id.
	IDs []string
	// Tags is the union of all bundle tags.
	Tags []string
}

// Expand composes the stacked layers by Cartesian product, preserving
// declaration order: earlier layers vary slowest. A declaration with no
// parametrization yields a single empty bundle. A layer with zero bundles
// yields no combinations at all.
func Expand(layers []Parametrization) []ExpandedBundle {
	combos := []ExpandedBundle{{Spec: NewCallSpec()}}
	for _, layer := range layers {
		var next []ExpandedBundle
		for _, combo := range combos {
			for _, b := range layer.Bundles {
				merged := combo.Spec.Clone()
				for i, key := range layer.Keys {
					if i < len(b.Values) {
						merged.Set(key, b.Values[i])
					}
				}
				next = append(next, ExpandedBundle{
					Spec: merged,
					IDs:  append(append([]string(nil), combo.IDs...), b.ID),
					Tags: append(append([]string(nil), combo.Tags...), b.Tags...),
				})
			}
		}
		combos = next
	}
	return combos
}

// HasCustomIDs reports whether every stacked layer contributed an id.
func (e ExpandedBundle) HasCustomIDs() bool {
	if len(e.IDs) == 0 {
		return false
	}
	for _, id := range e.IDs {
		if id == "" {
			return false
		}
	}
	return true
}
