package esquery

import (
	"strings"

	"storefront-query-engine/internal/domain"
	"storefront-query-engine/internal/filterconfig"
)

// Context distinguishes the two price-range clause shapes (spec §4.6):
// products/search use the overlap-window "should" form, pure facet
// computation uses the simpler "must" overlap form.
type Context int

const (
	ProductsContext Context = iota
	FacetsContext
)

// CompiledQuery is the output of Compile: the bool.must document query plus
// its sort and pagination. Aggregations are built separately by CompileAggs.
type CompiledQuery struct {
	Query Query
	Sort  []map[string]interface{}
	From  int
	Size  int
}

// ptr is a small helper for building *float64 literals inline.
func ptr(f float64) *float64 { return &f }

// Compile translates a FilterInput into the bool.must document query and
// the sort/pagination parameters, per spec §4.6. One clause is emitted per
// non-empty field of fi (§8 invariant 2), except the compound CPID logic
// which is already folded into fi.Collections by C1/C3.
func Compile(fi domain.FilterInput, ctx Context) CompiledQuery {
	var must []Query

	if fi.Search != "" {
		must = append(must, MultiMatch{
			Query:     fi.Search,
			Fields:    []string{"title^3", "vendor^2", "productType", "tags"},
			Type:      "best_fields",
			Operator:  "and",
		})
	}
	if len(fi.Vendors) > 0 {
		must = append(must, Terms{Field: "vendor.keyword", Values: fi.Vendors})
	}
	if len(fi.ProductTypes) > 0 {
		must = append(must, Terms{Field: "productType.keyword", Values: fi.ProductTypes})
	}
	if len(fi.Tags) > 0 {
		must = append(must, Terms{Field: "tags.keyword", Values: fi.Tags})
	}
	if len(fi.Collections) > 0 {
		must = append(must, Terms{Field: "collections.keyword", Values: fi.Collections})
	}
	if len(fi.VariantOptionKeys) > 0 {
		must = append(must, Terms{Field: "variantOptionKeys.keyword", Values: fi.VariantOptionKeys})
	}

	for _, name := range sortedKeys(fi.Options) {
		values := fi.Options[name]
		pairs := make([]string, 0, len(values))
		for _, v := range values {
			pairs = append(pairs, name+"::"+v)
		}
		must = append(must, Terms{Field: "optionPairs.keyword", Values: pairs})
	}

	if fi.PriceMin != nil || fi.PriceMax != nil {
		if ctx == FacetsContext {
			var clauses []Query
			if fi.PriceMin != nil {
				clauses = append(clauses, Range{Field: "maxPrice", GTE: fi.PriceMin})
			}
			if fi.PriceMax != nil {
				clauses = append(clauses, Range{Field: "minPrice", LTE: fi.PriceMax})
			}
			must = append(must, clauses...)
		} else {
			should := []Query{
				Range{Field: "minPrice", GTE: fi.PriceMin, LTE: fi.PriceMax},
				Range{Field: "maxPrice", GTE: fi.PriceMin, LTE: fi.PriceMax},
			}
			must = append(must, Bool{Should: should, MinimumShouldMatch: 1})
		}
	}

	if fi.VariantPriceMin != nil || fi.VariantPriceMax != nil {
		must = append(must, Nested{
			Path: "variants",
			Query: Range{Field: "variants.price.numeric", GTE: fi.VariantPriceMin, LTE: fi.VariantPriceMax},
		})
	}

	if len(fi.VariantSkus) > 0 {
		must = append(must, Nested{
			Path:  "variants",
			Query: Terms{Field: "variants.sku", Values: fi.VariantSkus},
		})
	}

	if fi.HideOutOfStockItems {
		must = append(must, Nested{
			Path: "variants",
			Query: Bool{
				Should: []Query{
					Term{Field: "variants.availableForSale", Value: true},
					Range{Field: "variants.inventoryQuantity", GT: ptr(0)},
					Range{Field: "variants.sellableOnlineQuantity", GT: ptr(0)},
				},
				MinimumShouldMatch: 1,
			},
		})
	}

	var root Query
	if len(must) == 0 {
		root = MatchAll{}
	} else {
		root = Bool{Must: must}
	}

	sort := compileSort(fi)
	from := (fi.Page - 1) * fi.Limit
	if from < 0 {
		from = 0
	}

	return CompiledQuery{Query: root, Sort: sort, From: from, Size: fi.Limit}
}

func compileSort(fi domain.FilterInput) []map[string]interface{} {
	if fi.Sort != "" {
		parts := strings.SplitN(fi.Sort, ":", 2)
		if len(parts) == 2 {
			field, order := parts[0], parts[1]
			return []map[string]interface{}{
				{field: map[string]interface{}{"order": order, "missing": "_last"}},
			}
		}
	}
	if fi.Search != "" {
		return []map[string]interface{}{{"_score": map[string]interface{}{"order": "desc"}}}
	}
	return []map[string]interface{}{
		{"createdAt": map[string]interface{}{"order": "desc", "missing": "_last"}},
	}
}

// AggregationShape is one of the facet kinds a published option can map to.
type AggregationShape string

const (
	AggVendors           AggregationShape = "vendors"
	AggProductTypes      AggregationShape = "productTypes"
	AggTags              AggregationShape = "tags"
	AggCollections       AggregationShape = "collections"
	AggOptionPairs       AggregationShape = "optionPairs"
	AggPriceRange        AggregationShape = "priceRange"
	AggVariantPriceRange AggregationShape = "variantPriceRange"
)

// optionTypeToShape maps a normalized optionType to the aggregation shape it
// requires, per spec §4.6.
var optionTypeToShape = map[string]AggregationShape{
	"vendor":       AggVendors,
	"producttype":  AggProductTypes,
	"product_type": AggProductTypes,
	"tag":          AggTags,
	"tags":         AggTags,
	"collection":   AggCollections,
	"collections":  AggCollections,
	"price":        AggPriceRange,
}

// CompileAggs builds the aggregations block restricted to shapes backed by
// a published option in rc, per spec §4.6. With no configuration, all
// aggregations are enabled (backward compatibility).
func CompileAggs(rc *filterconfig.ResolvedConfig) map[string]Agg {
	shapes := map[AggregationShape]bool{AggVariantPriceRange: true}

	if rc.IsNull() {
		for _, shape := range optionTypeToShape {
			shapes[shape] = true
		}
		shapes[AggOptionPairs] = true
	} else {
		for _, opt := range rc.Config.Options {
			if opt.Status != domain.StatusPublished {
				continue
			}
			normalized := strings.ToLower(strings.TrimSpace(opt.OptionType))
			if shape, ok := optionTypeToShape[normalized]; ok {
				shapes[shape] = true
			} else {
				shapes[AggOptionPairs] = true
			}
		}
	}

	aggs := map[string]Agg{}
	if shapes[AggVendors] {
		aggs["vendors"] = TermsAgg{Field: "vendor.keyword", Size: 500, Order: "count_desc"}
	}
	if shapes[AggProductTypes] {
		aggs["productTypes"] = TermsAgg{Field: "productType.keyword", Size: 500, Order: "count_desc"}
	}
	if shapes[AggTags] {
		aggs["tags"] = TermsAgg{Field: "tags.keyword", Size: 1000}
	}
	if shapes[AggCollections] {
		aggs["collections"] = TermsAgg{Field: "collections.keyword", Size: 1000}
	}
	if shapes[AggOptionPairs] {
		aggs["optionPairs"] = TermsAgg{Field: "optionPairs.keyword", Size: 2500}
	}
	if shapes[AggPriceRange] {
		aggs["priceRange"] = StatsAgg{Field: "minPrice"}
	}
	if shapes[AggVariantPriceRange] {
		aggs["variantPriceRange"] = NestedAgg{
			Path: "variants",
			Aggs: map[string]Agg{"stats": StatsAgg{Field: "variants.price.numeric"}},
		}
	}
	return aggs
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic clause order keeps compiled-query golden tests stable.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
