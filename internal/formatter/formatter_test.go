package formatter

import (
	"testing"

	"storefront-query-engine/internal/domain"
	"storefront-query-engine/internal/filterconfig"

	"github.com/stretchr/testify/assert"
)

func buildResolvedConfig(cfg *domain.FilterConfiguration) *filterconfig.ResolvedConfig {
	if cfg == nil {
		return &filterconfig.ResolvedConfig{}
	}
	standard := map[string]bool{"vendor": true}
	handleToOption := map[string]string{}
	for _, o := range cfg.Options {
		name := o.OptionType
		if o.OptionSettings.VariantOptionKey != "" {
			name = o.OptionSettings.VariantOptionKey
		}
		handleToOption[o.Handle] = name
	}
	return &filterconfig.ResolvedConfig{Config: cfg, HandleToOption: handleToOption, StandardFilterNames: standard}
}

func TestDecodeOptionPairBuckets(t *testing.T) {
	buckets := []Bucket{
		{Key: "Size::M", DocCount: 5},
		{Key: "Size::XL", DocCount: 10},
		{Key: "novalue", DocCount: 3},
	}
	groups := DecodeOptionPairBuckets(buckets)
	assert.Len(t, groups, 1)
	assert.Equal(t, []FacetValue{{Value: "XL", Count: 10}, {Value: "M", Count: 5}}, groups["Size"])
}

func TestVariantOptionKeys_ExcludesStandardFilters(t *testing.T) {
	cfg := &domain.FilterConfiguration{
		Options: []domain.FilterOption{
			{Handle: "vnd", OptionType: "vendor", Status: domain.StatusPublished, OptionSettings: domain.OptionSettings{BaseOptionType: "option"}},
			{Handle: "sz", OptionType: "Size", Status: domain.StatusPublished, OptionSettings: domain.OptionSettings{BaseOptionType: "option"}},
		},
	}
	rc := buildResolvedConfig(cfg)
	keys := VariantOptionKeys(rc)
	assert.True(t, keys["size"])
	assert.False(t, keys["vendor"])
}

func TestFilterOptionPairFacets_PassAllWhenEmpty(t *testing.T) {
	groups := map[string][]FacetValue{"Size": {{Value: "M", Count: 1}}}
	out := FilterOptionPairFacets(groups, map[string]bool{})
	assert.Equal(t, groups, out)
}

func TestFilterOptionPairFacets_DropsUnlisted(t *testing.T) {
	groups := map[string][]FacetValue{
		"Size":  {{Value: "M", Count: 1}},
		"Color": {{Value: "Red", Count: 2}},
	}
	out := FilterOptionPairFacets(groups, map[string]bool{"size": true})
	assert.Contains(t, out, "Size")
	assert.NotContains(t, out, "Color")
}

func TestBuildFacetList_OrderedByPosition(t *testing.T) {
	cfg := &domain.FilterConfiguration{
		Options: []domain.FilterOption{
			{Handle: "sz", OptionType: "Size", Status: domain.StatusPublished, Position: 2},
			{Handle: "cl", OptionType: "Color", Status: domain.StatusPublished, Position: 1},
		},
	}
	rc := buildResolvedConfig(cfg)
	groups := map[string][]FacetValue{
		"Size":  {{Value: "M", Count: 1}},
		"Color": {{Value: "Red", Count: 2}},
	}
	facets := BuildFacetList(groups, rc)
	assert.Equal(t, "Color", facets[0].Name)
	assert.Equal(t, "Size", facets[1].Name)
}

func TestBuildPriceRange_OnlyWhenBothPresent(t *testing.T) {
	assert.Nil(t, BuildPriceRange(nil, nil))
	min, max := 1.0, 2.0
	assert.Equal(t, &PriceRange{Min: 1, Max: 2}, BuildPriceRange(&min, &max))
}

func TestProjectFields_DottedPath(t *testing.T) {
	product := map[string]interface{}{
		"id":    "1",
		"title": "Shoe",
		"variants": []interface{}{
			map[string]interface{}{"id": "v1", "price": 10.0},
		},
	}
	out := ProjectFields(product, []string{"id", "variants.price"})
	assert.Equal(t, "1", out["id"])
	variants := out["variants"].(map[string]interface{})
	assert.Equal(t, []interface{}{10.0}, variants["price"])
}

func TestProjectFields_EmptyReturnsOriginal(t *testing.T) {
	product := map[string]interface{}{"id": "1"}
	assert.Equal(t, product, ProjectFields(product, nil))
}
