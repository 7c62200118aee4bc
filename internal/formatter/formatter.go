// Package formatter takes the raw Elasticsearch response and produces the
// public facet/product shape (C7).
package formatter

import (
	"sort"
	"strings"

	"storefront-query-engine/internal/domain"
	"storefront-query-engine/internal/filterconfig"
)

// FacetValue is one value within a facet, with its document count.
type FacetValue struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
	Label string `json:"label,omitempty"`
}

// Facet is one formatted facet ready for the storefront.
type Facet struct {
	Handle   string       `json:"handle,omitempty"`
	Label    string       `json:"label,omitempty"`
	Type     string       `json:"type,omitempty"`
	Name     string       `json:"name"`
	Values   []FacetValue `json:"values"`
	Position int          `json:"position"`
}

// PriceRange is emitted only when both bounds are present.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FormattedResult is the final shape handed to the HTTP layer.
type FormattedResult struct {
	Products          []map[string]interface{} `json:"products"`
	Total             int64                     `json:"total"`
	Facets            []Facet                   `json:"facets,omitempty"`
	PriceRange        *PriceRange               `json:"priceRange,omitempty"`
	VariantPriceRange *PriceRange               `json:"variantPriceRange,omitempty"`
}

// Bucket is the minimal shape of one ES terms-aggregation bucket.
type Bucket struct {
	Key      string
	DocCount int64
}

// DecodeOptionPairBuckets splits "Name::Value" bucket keys into grouped
// facets, per spec §4.7. Buckets lacking the separator are discarded.
func DecodeOptionPairBuckets(buckets []Bucket) map[string][]FacetValue {
	groups := make(map[string][]FacetValue)
	for _, b := range buckets {
		idx := strings.Index(b.Key, "::")
		if idx < 0 {
			continue
		}
		name := b.Key[:idx]
		value := b.Key[idx+2:]
		groups[name] = append(groups[name], FacetValue{Value: value, Count: b.DocCount})
	}
	for name := range groups {
		vals := groups[name]
		sort.SliceStable(vals, func(i, j int) bool { return vals[i].Count > vals[j].Count })
		groups[name] = vals
	}
	return groups
}

// VariantOptionKeys derives the set of facet names allowed to pass the
// optionPairs bucket filter, per spec §4.7. An empty result means "pass
// all" (no configuration, or configuration with no qualifying options).
func VariantOptionKeys(rc *filterconfig.ResolvedConfig) map[string]bool {
	keys := map[string]bool{}
	if rc.IsNull() {
		return keys
	}
	for _, opt := range rc.Config.Options {
		if opt.Status != domain.StatusPublished {
			continue
		}
		var name string
		switch {
		case opt.OptionSettings.VariantOptionKey != "":
			name = opt.OptionSettings.VariantOptionKey
		case opt.OptionSettings.BaseOptionType == "option":
			name = opt.OptionType
		default:
			name = opt.OptionSettings.BaseOptionType
		}
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if rc.StandardFilterNames[name] {
			continue
		}
		keys[name] = true
	}
	return keys
}

// FilterOptionPairFacets drops any decoded facet whose lowercased name is
// not in allowed, unless allowed is empty (pass all), per spec §4.7.
func FilterOptionPairFacets(groups map[string][]FacetValue, allowed map[string]bool) map[string][]FacetValue {
	if len(allowed) == 0 {
		return groups
	}
	out := make(map[string][]FacetValue, len(groups))
	for name, vals := range groups {
		if allowed[strings.ToLower(name)] {
			out[name] = vals
		}
	}
	return out
}

// BuildFacetList assembles the final ordered facet list. When rc is
// resolved, each facet is stamped with its option's position and the list
// is sorted ascending by position, per spec §4.7. Without configuration,
// facets are sorted by name for determinism; values within each facet keep
// their count-desc order.
func BuildFacetList(groups map[string][]FacetValue, rc *filterconfig.ResolvedConfig) []Facet {
	if rc.IsNull() {
		names := make([]string, 0, len(groups))
		for n := range groups {
			names = append(names, n)
		}
		sort.Strings(names)
		facets := make([]Facet, 0, len(names))
		for _, n := range names {
			facets = append(facets, Facet{Name: n, Values: groups[n]})
		}
		return facets
	}

	positionByName := make(map[string]int)
	handleByName := make(map[string]string)
	for _, opt := range rc.Config.Options {
		if opt.Status != domain.StatusPublished {
			continue
		}
		name := opt.OptionType
		if opt.OptionSettings.VariantOptionKey != "" {
			name = opt.OptionSettings.VariantOptionKey
		}
		positionByName[name] = opt.Position
		handleByName[name] = opt.Handle
	}

	facets := make([]Facet, 0, len(groups))
	for name, vals := range groups {
		facets = append(facets, Facet{
			Name:     name,
			Handle:   handleByName[name],
			Values:   vals,
			Position: positionByName[name],
		})
	}
	sort.SliceStable(facets, func(i, j int) bool { return facets[i].Position < facets[j].Position })
	return facets
}

// BuildPriceRange emits a PriceRange only when both min and max are present,
// per spec §4.7.
func BuildPriceRange(min, max *float64) *PriceRange {
	if min == nil || max == nil {
		return nil
	}
	return &PriceRange{Min: *min, Max: *max}
}

// ProjectFields projects a product map to the requested dotted field paths.
// If fields is empty, the storefront default set (the product as-is) is
// returned unchanged.
func ProjectFields(product map[string]interface{}, fields []string) map[string]interface{} {
	if len(fields) == 0 {
		return product
	}
	out := make(map[string]interface{}, len(fields))
	for _, path := range fields {
		v, ok := getDottedPath(product, path)
		if ok {
			setDottedPath(out, path, v)
		}
	}
	return out
}

func getDottedPath(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]interface{})
		if ok {
			v, exists := asMap[p]
			if !exists {
				return nil, false
			}
			cur = v
			continue
		}
		asSlice, ok := cur.([]interface{})
		if ok {
			var out []interface{}
			for _, item := range asSlice {
				if itemMap, ok := item.(map[string]interface{}); ok {
					if v, exists := itemMap[p]; exists {
						out = append(out, v)
					}
				}
			}
			cur = out
			continue
		}
		return nil, false
	}
	return cur, true
}

func setDottedPath(m map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	cur := m
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[p] = next
		}
		cur = next
	}
}
