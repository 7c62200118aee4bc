package esquery

import (
	"testing"

	"storefront-query-engine/internal/domain"
	"storefront-query-engine/internal/filterconfig"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_OneClausePerNonEmptyField(t *testing.T) {
	fi := domain.FilterInput{
		Search:  "shoes",
		Vendors: []string{"Nike"},
		Page:    1,
		Limit:   20,
	}
	cq := Compile(fi, ProductsContext)
	b, ok := cq.Query.(Bool)
	require.True(t, ok)
	assert.Len(t, b.Must, 2)
}

func TestCompile_EmptyInputIsMatchAll(t *testing.T) {
	cq := Compile(domain.FilterInput{Page: 1, Limit: 20}, ProductsContext)
	_, ok := cq.Query.(MatchAll)
	assert.True(t, ok)
}

func TestCompile_OptionPairsClause(t *testing.T) {
	// S2: options[Size]=[M,XL] compiles to optionPairs terms.
	fi := domain.FilterInput{
		Options: map[string][]string{"Size": {"M", "XL"}},
		Page:    1, Limit: 20,
	}
	cq := Compile(fi, ProductsContext)
	b := cq.Query.(Bool)
	require.Len(t, b.Must, 1)
	terms := b.Must[0].(Terms)
	assert.Equal(t, "optionPairs.keyword", terms.Field)
	assert.ElementsMatch(t, []string{"Size::M", "Size::XL"}, terms.Values)
}

func TestCompile_VendorNoOptionPairsLeftover(t *testing.T) {
	// S3: vendor terms clause, no optionPairs clause for vendor.
	fi := domain.FilterInput{Vendors: []string{"Nike"}, Page: 1, Limit: 20}
	cq := Compile(fi, ProductsContext)
	b := cq.Query.(Bool)
	for _, m := range b.Must {
		if terms, ok := m.(Terms); ok {
			assert.NotEqual(t, "optionPairs.keyword", terms.Field)
		}
	}
}

func TestCompile_SortExplicitWins(t *testing.T) {
	cq := Compile(domain.FilterInput{Sort: "minPrice:asc", Page: 1, Limit: 20}, ProductsContext)
	require.Len(t, cq.Sort, 1)
	assert.Contains(t, cq.Sort[0], "minPrice")
}

func TestCompile_SortFallsBackToScoreWhenSearchSet(t *testing.T) {
	cq := Compile(domain.FilterInput{Search: "shoes", Page: 1, Limit: 20}, ProductsContext)
	assert.Contains(t, cq.Sort[0], "_score")
}

func TestCompile_SortFallsBackToCreatedAt(t *testing.T) {
	cq := Compile(domain.FilterInput{Page: 1, Limit: 20}, ProductsContext)
	assert.Contains(t, cq.Sort[0], "createdAt")
}

func TestCompile_PaginationBoundary(t *testing.T) {
	cq := Compile(domain.FilterInput{Page: 3, Limit: 20}, ProductsContext)
	assert.Equal(t, 40, cq.From)
	assert.Equal(t, 20, cq.Size)
}

func TestCompileAggs_NoConfigEnablesAll(t *testing.T) {
	aggs := CompileAggs(nullConfigForTest())
	assert.Contains(t, aggs, "vendors")
	assert.Contains(t, aggs, "optionPairs")
	assert.Contains(t, aggs, "variantPriceRange")
}

func TestCompileAggs_RestrictedToPublishedOptions(t *testing.T) {
	cfg := &domain.FilterConfiguration{
		Options: []domain.FilterOption{
			{Handle: "vnd", OptionType: "vendor", Status: domain.StatusPublished},
		},
	}
	rc := resolvedConfigForTest(cfg)
	aggs := CompileAggs(rc)
	assert.Contains(t, aggs, "vendors")
	assert.NotContains(t, aggs, "tags")
}

// --- helpers to avoid importing resolver internals across package boundary ---

func nullConfigForTest() *filterconfig.ResolvedConfig {
	return resolvedConfigForTest(nil)
}

func resolvedConfigForTest(cfg *domain.FilterConfiguration) *filterconfig.ResolvedConfig {
	if cfg == nil {
		return &filterconfig.ResolvedConfig{}
	}
	handleToOption := map[string]string{}
	standardNames := map[string]bool{}
	for _, opt := range cfg.Options {
		name := opt.OptionType
		if opt.OptionSettings.VariantOptionKey != "" {
			name = opt.OptionSettings.VariantOptionKey
		}
		handleToOption[opt.Handle] = name
	}
	return &filterconfig.ResolvedConfig{
		Config:              cfg,
		HandleToOption:      handleToOption,
		StandardFilterNames: standardNames,
	}
}
