package httpapi

import (
	"net/http"
	"strings"

	"storefront-query-engine/internal/apierr"
	"storefront-query-engine/internal/queryparser"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers composes Service calls into gin handler functions, matching
// search-service/internal/handler/search_handler.go's shape.
type Handlers struct {
	service *Service
	logger  *zap.Logger
}

// HealthCheck is a liveness-only probe; it checks no dependency, so it can
// never be rate-limited or blocked by a degraded upstream.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func rawQueryFromGin(c *gin.Context) queryparser.RawQuery {
	raw := make(queryparser.RawQuery)
	for k, vs := range c.Request.URL.Query() {
		raw[k] = vs
	}
	return raw
}

// Products handles GET /storefront/products.
func (h *Handlers) Products(c *gin.Context) {
	shop := c.GetString("shop")
	collectionID := firstCollectionID(c)

	result, err := h.service.Products(c.Request.Context(), shop, collectionID, rawQueryFromGin(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	data := gin.H{
		"products": result.Products,
		"pagination": gin.H{
			"total":      result.Total,
			"page":       result.Page,
			"limit":      result.Limit,
			"totalPages": result.TotalPages,
		},
	}
	if result.Facets != nil {
		data["filters"] = result.Facets
	}
	if result.PriceRange != nil {
		data["priceRange"] = result.PriceRange
	}
	if result.VariantPriceRange != nil {
		data["variantPriceRange"] = result.VariantPriceRange
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Filters handles GET /storefront/filters.
func (h *Handlers) Filters(c *gin.Context) {
	shop := c.GetString("shop")
	collectionID := firstCollectionID(c)
	keep := c.Query("keep")
	if keep == "" {
		keep = c.Query("preserveOptionAggregations")
	}

	result, err := h.service.Filters(c.Request.Context(), shop, collectionID, keep, rawQueryFromGin(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	data := gin.H{
		"filters":        result.Facets,
		"appliedFilters": result.AppliedFilters,
	}
	if result.PriceRange != nil {
		data["priceRange"] = result.PriceRange
	}
	if result.VariantPriceRange != nil {
		data["variantPriceRange"] = result.VariantPriceRange
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Search handles GET /storefront/search.
func (h *Handlers) Search(c *gin.Context) {
	shop := c.GetString("shop")
	collectionID := firstCollectionID(c)
	includeFacets := parseBool(c.Query("includeFacets"))

	result, err := h.service.Search(c.Request.Context(), shop, collectionID, includeFacets, rawQueryFromGin(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	data := gin.H{
		"products": result.Products,
		"pagination": gin.H{
			"total":      result.Total,
			"page":       result.Page,
			"limit":      result.Limit,
			"totalPages": result.TotalPages,
		},
		"searchMetadata": result.SearchMetadata,
	}
	if result.ZeroResults {
		data["zeroResults"] = true
	}
	if result.Facets != nil {
		data["facets"] = result.Facets
	}
	if result.PriceRange != nil {
		data["priceRange"] = result.PriceRange
	}
	if result.VariantPriceRange != nil {
		data["variantPriceRange"] = result.VariantPriceRange
	}
	if result.Suggestions != nil {
		data["suggestions"] = result.Suggestions
	}
	if result.DidYouMean != nil {
		data["didYouMean"] = *result.DidYouMean
	}
	if result.AlternativeQueries != nil {
		data["alternativeQueries"] = result.AlternativeQueries
	}
	if result.QueryCorrection != nil {
		data["queryCorrection"] = result.QueryCorrection
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func firstCollectionID(c *gin.Context) string {
	if v := c.Query("collection"); v != "" {
		return strings.Split(v, ",")[0]
	}
	return ""
}

func parseBool(s string) bool {
	return s == "true" || s == "1"
}

// writeError translates an apierr.Error into the wire error envelope, per
// spec §7's propagation rule. CacheError and ConfigMissing never reach here
// — they're absorbed upstream in Service — so anything surfacing here is a
// genuine failure.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	requestID := c.GetString("request_id")

	apiErr, ok := apierr.As(err)
	if !ok {
		logger.Error("unhandled error", zap.String("requestId", requestID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	logger.Error("request failed",
		zap.String("requestId", requestID),
		zap.String("kind", string(apiErr.Kind)),
		zap.String("message", apiErr.Message),
	)
	c.JSON(apierr.HTTPStatus(apiErr.Kind), gin.H{"success": false, "error": apiErr.Message})
}
