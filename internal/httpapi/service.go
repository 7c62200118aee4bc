// Package httpapi is the HTTP surface (C8): three storefront routes
// composing C1-C7 end to end, plus the validation/rate-limit/CORS/logging
// middleware stack, grounded on search-service's router/handler/service
// trio.
package httpapi

import (
	"context"
	"fmt"
	"time"

	"storefront-query-engine/internal/apierr"
	"storefront-query-engine/internal/cache"
	"storefront-query-engine/internal/domain"
	"storefront-query-engine/internal/esclient"
	"storefront-query-engine/internal/esquery"
	"storefront-query-engine/internal/filterconfig"
	"storefront-query-engine/internal/formatter"
	"storefront-query-engine/internal/queryparser"

	"go.uber.org/zap"
)

// Service composes C1-C7 into the per-route operations the handlers call.
// It holds no per-request state; everything it touches is process-wide and
// safe under concurrent use, per spec §5.
type Service struct {
	resolver *filterconfig.Resolver
	cache    *cache.Manager
	es       *esclient.Client
	logger   *zap.Logger
}

// NewService wires the pipeline's shared components.
func NewService(resolver *filterconfig.Resolver, cacheMgr *cache.Manager, es *esclient.Client, logger *zap.Logger) *Service {
	return &Service{resolver: resolver, cache: cacheMgr, es: es, logger: logger}
}

// ProductsResult is the output of the /storefront/products route.
type ProductsResult struct {
	Products          []map[string]interface{}
	Total             int64
	Page              int
	Limit             int
	TotalPages        int
	Facets            []formatter.Facet
	PriceRange        *formatter.PriceRange
	VariantPriceRange *formatter.PriceRange
}

// Products runs the full pipeline for the products route.
func (s *Service) Products(ctx context.Context, shop, collectionID string, raw queryparser.RawQuery) (*ProductsResult, error) {
	fi := queryparser.Parse(raw)

	rc, err := s.resolver.Resolve(ctx, shop, collectionID, fi.CPID)
	if err != nil {
		rc = nullResolvedConfig()
	}
	fi = filterconfig.Apply(rc, fi, collectionID)
	configHash := filterconfig.Hash(configOrNil(rc))

	cacheKey := cache.ResultKey(cache.Search, shop, configHash, fi)
	raw2, err := s.cache.SearchCache().GetOrBuild(cacheKey, func() (interface{}, error) {
		return s.runProductsQuery(ctx, shop, fi, rc)
	})
	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.IndexMissing {
			return emptyProductsResult(fi), nil
		}
		return nil, err
	}

	return raw2.(*ProductsResult), nil
}

func (s *Service) runProductsQuery(ctx context.Context, shop string, fi domain.FilterInput, rc *filterconfig.ResolvedConfig) (*ProductsResult, error) {
	deadline, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	index := domain.Tenant{ShopDomain: shop}.IndexName()
	compiled := esquery.Compile(fi, esquery.ProductsContext)

	body := map[string]interface{}{
		"query": esquery.ToMap(compiled.Query),
		"sort":  compiled.Sort,
		"from":  compiled.From,
		"size":  compiled.Size,
	}
	if fi.IncludeFilters {
		body["aggs"] = esquery.AggsToMap(esquery.CompileAggs(rc))
	}

	resp, err := s.es.Search(deadline, index, body)
	if err != nil {
		return nil, err
	}

	products := make([]map[string]interface{}, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		products = append(products, formatter.ProjectFields(hit, fi.Fields))
	}

	result := &ProductsResult{
		Products:   products,
		Total:      resp.Total,
		Page:       fi.Page,
		Limit:      fi.Limit,
		TotalPages: totalPages(resp.Total, fi.Limit),
	}

	if fi.IncludeFilters && resp.Aggs != nil {
		result.Facets, result.PriceRange, result.VariantPriceRange = buildFacets(resp.Aggs, rc)
	}

	return result, nil
}

// FiltersResult is the output of the /storefront/filters route.
type FiltersResult struct {
	Facets            []formatter.Facet
	PriceRange        *formatter.PriceRange
	VariantPriceRange *formatter.PriceRange
	AppliedFilters    domain.FilterInput
}

// Filters runs the facets-only pipeline for the filters route. When keep is
// non-empty, that option's own clause is removed from the bool query before
// computing aggregations, per spec §6.
func (s *Service) Filters(ctx context.Context, shop, collectionID, keep string, raw queryparser.RawQuery) (*FiltersResult, error) {
	fi := queryparser.Parse(raw)

	rc, err := s.resolver.Resolve(ctx, shop, collectionID, fi.CPID)
	if err != nil {
		rc = nullResolvedConfig()
	}
	fi = filterconfig.Apply(rc, fi, collectionID)
	configHash := filterconfig.Hash(configOrNil(rc))

	aggInput := fi
	if keep != "" {
		aggInput = aggInput.Clone()
		delete(aggInput.Options, keep)
	}

	cacheKey := cache.ResultKey(cache.Facet, shop, configHash, aggInput)
	raw2, err := s.cache.FacetCache().GetOrBuild(cacheKey, func() (interface{}, error) {
		return s.runFacetQuery(ctx, shop, aggInput, rc)
	})
	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.IndexMissing {
			return &FiltersResult{AppliedFilters: fi}, nil
		}
		return nil, err
	}

	// Copy before mutating: raw2 may be a pointer shared with other callers
	// via the cache, and AppliedFilters is per-call (it is this request's
	// full post-C3 input, with the kept option still present, not the cached
	// aggregation query).
	result := *raw2.(*FiltersResult)
	result.AppliedFilters = fi
	return &result, nil
}

func (s *Service) runFacetQuery(ctx context.Context, shop string, fi domain.FilterInput, rc *filterconfig.ResolvedConfig) (*FiltersResult, error) {
	deadline, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	index := domain.Tenant{ShopDomain: shop}.IndexName()
	compiled := esquery.Compile(fi, esquery.FacetsContext)

	body := map[string]interface{}{
		"query": esquery.ToMap(compiled.Query),
		"size":  0,
		"aggs":  esquery.AggsToMap(esquery.CompileAggs(rc)),
	}

	resp, err := s.es.Search(deadline, index, body)
	if err != nil {
		return nil, err
	}

	result := &FiltersResult{}
	result.Facets, result.PriceRange, result.VariantPriceRange = buildFacets(resp.Aggs, rc)
	return result, nil
}

// QueryCorrection describes a spelling correction applied to a zero-result
// search term, per spec §6's search wire contract.
type QueryCorrection struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Message   string `json:"message"`
}

// SearchMetadata accompanies every /storefront/search response, per spec §6.
type SearchMetadata struct {
	Query       string `json:"query"`
	TookMillis  int64  `json:"tookMillis"`
	ZeroResults bool   `json:"zeroResults"`
}

// SearchResult is the output of the /storefront/search route.
type SearchResult struct {
	Products           []map[string]interface{}
	Total              int64
	Page               int
	Limit              int
	TotalPages         int
	Facets             []formatter.Facet
	PriceRange         *formatter.PriceRange
	VariantPriceRange  *formatter.PriceRange
	ZeroResults        bool
	Suggestions        []string
	DidYouMean         *string
	AlternativeQueries []string
	QueryCorrection    *QueryCorrection
	SearchMetadata     SearchMetadata
	took               int64
}

// Search runs the search-specific pipeline, including the zero-result
// suggestion fallback described in spec §4.6/§6.
func (s *Service) Search(ctx context.Context, shop, collectionID string, includeFacets bool, raw queryparser.RawQuery) (*SearchResult, error) {
	fi := queryparser.Parse(raw)

	rc, err := s.resolver.Resolve(ctx, shop, collectionID, fi.CPID)
	if err != nil {
		rc = nullResolvedConfig()
	}
	fi = filterconfig.Apply(rc, fi, collectionID)
	fi.IncludeFilters = includeFacets
	configHash := filterconfig.Hash(configOrNil(rc))

	cacheKey := cache.ResultKey(cache.Search, shop, configHash, fi)
	raw2, err := s.cache.SearchCache().GetOrBuild(cacheKey, func() (interface{}, error) {
		return s.runSearchQuery(ctx, shop, fi, rc)
	})
	var result SearchResult
	if err != nil {
		if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.IndexMissing {
			result = SearchResult{Page: fi.Page, Limit: fi.Limit, ZeroResults: true}
		} else {
			return nil, err
		}
	} else {
		// Copy before mutating: raw2 may be a pointer shared with other
		// callers via the cache, and suggestions are per-call (driven by
		// this request's "suggestions"/"handleZeroResults" flags).
		result = *raw2.(*SearchResult)
	}

	wantSuggestions := parseBoolFlag(raw, "suggestions", false)
	handleZeroResults := parseBoolFlag(raw, "handleZeroResults", true)
	if fi.Search != "" && (wantSuggestions || (handleZeroResults && result.Total == 0)) {
		s.attachSuggestions(ctx, shop, fi, &result)
	}

	result.SearchMetadata = SearchMetadata{Query: fi.Search, TookMillis: result.took, ZeroResults: result.Total == 0}

	return &result, nil
}

func (s *Service) runSearchQuery(ctx context.Context, shop string, fi domain.FilterInput, rc *filterconfig.ResolvedConfig) (*SearchResult, error) {
	deadline, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	index := domain.Tenant{ShopDomain: shop}.IndexName()
	compiled := esquery.Compile(fi, esquery.ProductsContext)

	body := map[string]interface{}{
		"query": esquery.ToMap(compiled.Query),
		"sort":  compiled.Sort,
		"from":  compiled.From,
		"size":  compiled.Size,
	}
	if fi.IncludeFilters {
		body["aggs"] = esquery.AggsToMap(esquery.CompileAggs(rc))
	}

	resp, err := s.es.Search(deadline, index, body)
	if err != nil {
		return nil, err
	}

	products := make([]map[string]interface{}, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		products = append(products, formatter.ProjectFields(hit, fi.Fields))
	}

	result := &SearchResult{
		Products:    products,
		Total:       resp.Total,
		Page:        fi.Page,
		Limit:       fi.Limit,
		TotalPages:  totalPages(resp.Total, fi.Limit),
		ZeroResults: resp.Total == 0,
		took:        resp.Took,
	}
	if fi.IncludeFilters && resp.Aggs != nil {
		result.Facets, result.PriceRange, result.VariantPriceRange = buildFacets(resp.Aggs, rc)
	}

	return result, nil
}

// attachSuggestions fires the two zero-result auxiliary searches described
// in spec §4.6 — a completion suggester over title and a phrase suggester
// for spelling correction — batched into one msearch round-trip. Failures
// degrade transparently: suggestions are a convenience, not part of the
// core result.
func (s *Service) attachSuggestions(ctx context.Context, shop string, fi domain.FilterInput, result *SearchResult) {
	deadline, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	index := domain.Tenant{ShopDomain: shop}.IndexName()
	bodies := []map[string]interface{}{
		esquery.SuggestRequest(fi.Search, 5),
		esquery.PhraseSuggestRequest(fi.Search, "title", 5),
	}

	responses, err := s.es.MSearch(deadline, index, bodies)
	if err != nil {
		s.logger.Debug("suggestion msearch failed, degrading transparently", zap.Error(err))
		return
	}
	if len(responses) != 2 {
		return
	}

	for _, opt := range esclient.ExtractSuggestOptions(responses[0].Suggest, "title-suggest") {
		result.Suggestions = append(result.Suggestions, opt.Text)
	}

	phrases := esclient.ExtractSuggestOptions(responses[1].Suggest, "did-you-mean")
	for i, opt := range phrases {
		if i == 0 && opt.Text != "" && opt.Text != fi.Search {
			best := opt.Text
			result.DidYouMean = &best
			result.QueryCorrection = &QueryCorrection{
				Original:  fi.Search,
				Corrected: best,
				Message:   fmt.Sprintf("Showing results for %q", best),
			}
			continue
		}
		if opt.Text != "" {
			result.AlternativeQueries = append(result.AlternativeQueries, opt.Text)
		}
	}
}

func buildFacets(aggs map[string]interface{}, rc *filterconfig.ResolvedConfig) ([]formatter.Facet, *formatter.PriceRange, *formatter.PriceRange) {
	buckets := esclientBuckets(aggs, "optionPairs")
	groups := formatter.DecodeOptionPairBuckets(buckets)
	allowed := formatter.VariantOptionKeys(rc)
	groups = formatter.FilterOptionPairFacets(groups, allowed)
	facets := formatter.BuildFacetList(groups, rc)

	priceStats := esclient.ExtractStats(aggs, "priceRange")
	priceRange := formatter.BuildPriceRange(priceStats.Min, priceStats.Max)

	variantStats := esclient.ExtractStats(aggs, "variantPriceRange", "stats")
	variantPriceRange := formatter.BuildPriceRange(variantStats.Min, variantStats.Max)

	return facets, priceRange, variantPriceRange
}

func esclientBuckets(aggs map[string]interface{}, name string) []formatter.Bucket {
	raw := esclient.ExtractBuckets(aggs, name)
	out := make([]formatter.Bucket, 0, len(raw))
	for _, b := range raw {
		out = append(out, formatter.Bucket{Key: b.Key, DocCount: b.DocCount})
	}
	return out
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		limit = 1
	}
	if total == 0 {
		return 0
	}
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	return pages
}

func emptyProductsResult(fi domain.FilterInput) *ProductsResult {
	return &ProductsResult{Products: []map[string]interface{}{}, Total: 0, Page: fi.Page, Limit: fi.Limit, TotalPages: 0}
}

func nullResolvedConfig() *filterconfig.ResolvedConfig {
	return &filterconfig.ResolvedConfig{HandleToOption: map[string]string{}, StandardFilterNames: map[string]bool{}}
}

func configOrNil(rc *filterconfig.ResolvedConfig) *domain.FilterConfiguration {
	if rc.IsNull() {
		return nil
	}
	return rc.Config
}

// parseBoolFlag reads a boolean query flag, falling back to def when the key
// is absent, per spec §6's "handleZeroResults (bool, default true)" clause.
func parseBoolFlag(raw queryparser.RawQuery, key string, def bool) bool {
	v := raw.Get(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1"
}
