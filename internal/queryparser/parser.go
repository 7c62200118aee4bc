// Package queryparser turns an untrusted HTTP query string into a
// sanitized, validated domain.FilterInput. Nothing here ever rejects a
// request for shape reasons — malformed pieces are dropped or truncated,
// never surfaced as errors, per spec §4.1.
package queryparser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"storefront-query-engine/internal/domain"
)

const (
	maxKeyLen   = 200
	maxValueLen = 500
	maxTermLen  = 100
	maxTermsLen = 100
)

// controlBytes matches NUL and ASCII control bytes (0x00-0x1F, 0x7F).
var controlBytes = regexp.MustCompile(`[\x00-\x1F\x7F]`)

// blocklist matches the narrow HTML/script-injection blocklist.
var blocklist = regexp.MustCompile("[<>`]")

// handlePattern matches the short-prefix handle heuristic, e.g. "pr_a3k9x".
var handlePattern = regexp.MustCompile(`^[a-z]{2,3}_[a-z0-9]{3,10}$`)

// barePattern matches the bare alphanumeric handle heuristic.
var barePattern = regexp.MustCompile(`^[a-z0-9]{5,10}$`)

// sortPattern matches "field:asc" or "field:desc".
var sortPattern = regexp.MustCompile(`^([a-zA-Z_.]+):(asc|desc)$`)

// commonWords is a small blocklist of bare words that look like handles but
// are almost always something else (e.g. "black", "large").
var commonWords = map[string]bool{
	"black": true, "white": true, "large": true, "small": true,
	"medium": true, "shirt": true, "pants": true, "green": true,
}

// reservedKeys are never promoted as option names — they have dedicated
// handling elsewhere in C1.
var reservedKeys = map[string]bool{
	"shop": true, "search": true, "q": true, "query": true,
	"page": true, "limit": true,
	"vendor": true, "vendors": true,
	"producttype": true, "producttypes": true,
	"tag": true, "tags": true,
	"collection": true, "collections": true,
	"price": true, "pricemin": true, "pricemax": true,
	"variantpricemin": true, "variantpricemax": true,
	"variantkey": true, "variantkeys": true, "variantoptionkeys": true,
	"variantsku": true, "variantskus": true,
	"sort": true, "fields": true, "includefilters": true,
	"options": true, "cpid": true,
	"keep": true, "preserveoptionaggregations": true,
	"suggestions": true, "handlezeroresults": true, "includefacets": true,
}

// sanitizeString applies the control-byte strip, blocklist strip, and
// truncation rules. It is pure and idempotent: sanitize(sanitize(x)) == sanitize(x).
func sanitizeString(s string, maxLen int) string {
	s = controlBytes.ReplaceAllString(s, "")
	s = blocklist.ReplaceAllString(s, "")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func sanitizeKey(k string) string   { return sanitizeString(k, maxKeyLen) }
func sanitizeValue(v string) string { return sanitizeString(v, maxValueLen) }
func sanitizeTerm(v string) string  { return sanitizeString(v, maxTermLen) }

func sanitizeTerms(vals []string) []string {
	if len(vals) > maxTermsLen {
		vals = vals[:maxTermsLen]
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, sanitizeTerm(v))
	}
	return out
}

// splitCSV splits a comma-separated scalar into sanitized terms.
func splitCSV(raw string) []string {
	raw = sanitizeValue(raw)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return sanitizeTerms(out)
}

// parseNonNegativeFloat parses s as a non-negative float; returns (value, ok).
// Bad numerics are dropped silently, per spec §4.1.
func parseNonNegativeFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// RawQuery is the decoded query map: each key maps to one or more string
// values (a query string field can repeat, or be comma-joined).
type RawQuery map[string][]string

// Get returns the first value for key, or "" if absent.
func (q RawQuery) Get(key string) string {
	if vs, ok := q[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// All returns every value for key, flattening repeats and comma-joins.
func (q RawQuery) All(key string) []string {
	vs, ok := q[key]
	if !ok {
		return nil
	}
	var out []string
	for _, v := range vs {
		out = append(out, splitCSV(v)...)
	}
	return out
}

// Parse turns a decoded raw query into a FilterInput. It never returns an
// error: sanitization failures degrade, they don't reject.
func Parse(raw RawQuery) domain.FilterInput {
	var fi domain.FilterInput

	if s := raw.Get("search"); s != "" {
		fi.Search = sanitizeValue(s)
	} else if s := raw.Get("q"); s != "" {
		fi.Search = sanitizeValue(s)
	} else if s := raw.Get("query"); s != "" {
		fi.Search = sanitizeValue(s)
	}

	fi.Vendors = firstNonEmpty(raw.All("vendor"), raw.All("vendors"))
	fi.ProductTypes = firstNonEmpty(raw.All("productType"), raw.All("productTypes"))
	fi.Tags = firstNonEmpty(raw.All("tag"), raw.All("tags"))
	fi.Collections = firstNonEmpty(raw.All("collection"), raw.All("collections"))
	fi.VariantOptionKeys = firstNonEmpty(raw.All("variantKey"), raw.All("variantKeys"), raw.All("variantOptionKeys"))
	fi.VariantSkus = firstNonEmpty(raw.All("variantSku"), raw.All("variantSkus"))

	if v, ok := parseNonNegativeFloat(raw.Get("priceMin")); ok {
		fi.PriceMin = &v
	}
	if v, ok := parseNonNegativeFloat(raw.Get("priceMax")); ok {
		fi.PriceMax = &v
	}
	// "price" is rewritten to "minPrice" per spec §4.1 sort/price rewrite rule;
	// as a bare filter param it is treated as an alias for priceMin.
	if fi.PriceMin == nil {
		if v, ok := parseNonNegativeFloat(raw.Get("price")); ok {
			fi.PriceMin = &v
		}
	}
	if v, ok := parseNonNegativeFloat(raw.Get("variantPriceMin")); ok {
		fi.VariantPriceMin = &v
	}
	if v, ok := parseNonNegativeFloat(raw.Get("variantPriceMax")); ok {
		fi.VariantPriceMax = &v
	}

	page := 1
	if p, err := strconv.Atoi(raw.Get("page")); err == nil {
		page = p
	}
	fi.Page = clampPage(page)

	limit := 20
	if l, err := strconv.Atoi(raw.Get("limit")); err == nil {
		limit = l
	}
	fi.Limit = clampLimit(limit)

	if sort := sanitizeValue(raw.Get("sort")); sort != "" {
		if m := sortPattern.FindStringSubmatch(sort); m != nil {
			field := m[1]
			if field == "price" {
				field = "minPrice"
			}
			fi.Sort = field + ":" + m[2]
		}
		// Unknown sort shape is dropped, not rejected — compiler falls back
		// to createdAt desc per spec §4.6.
	}

	if inc := raw.Get("includeFilters"); inc != "" {
		fi.IncludeFilters = inc == "true" || inc == "1"
	}

	if fields := raw.All("fields"); len(fields) > 0 {
		fi.Fields = fields
	}

	fi.Options = discoverOptions(raw)

	// CPID combination: cpid AND-ed into collections per spec §4.1.
	if cpid := sanitizeValue(raw.Get("cpid")); cpid != "" {
		numeric := extractNumericID(cpid)
		fi.CPID = numeric
		if numeric != "" {
			if len(fi.Collections) > 0 {
				fi.Collections = append(fi.Collections, numeric)
			} else {
				fi.Collections = []string{numeric}
			}
		}
	}

	return fi
}

// extractNumericID pulls the trailing numeric ID out of a GID-shaped string
// like "gid://shopify/Collection/100", or returns the input unchanged if it
// is already bare numeric.
func extractNumericID(s string) string {
	if idx := strings.LastIndex(s, "/"); idx >= 0 && idx < len(s)-1 {
		s = s[idx+1:]
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if s == "" {
		return ""
	}
	return s
}

func firstNonEmpty(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return dedup(out)
}

func dedup(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// discoverOptions implements the option-key discovery heuristic from
// spec §4.1: after reserved names are excluded, each remaining key is
// checked, in order, against the bracket/dot/underscore shape, the explicit
// options=... JSON body, then the handle heuristic.
func discoverOptions(raw RawQuery) map[string][]string {
	options := make(map[string][]string)

	if body := raw.Get("options"); body != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(body), &parsed); err == nil {
			for k, v := range parsed {
				name := sanitizeKey(k)
				vals := valuesFromJSON(v)
				if len(vals) > 0 {
					options[name] = append(options[name], vals...)
				}
			}
		}
		// Malformed JSON is ignored; other params still parse per spec §4.1.
	}

	bracketPattern := regexp.MustCompile(`^options\[([^\]]+)\]$|^option\.([^.]+)$|^option_(.+)$`)

	for key, vals := range raw {
		lower := strings.ToLower(key)
		if reservedKeys[lower] {
			continue
		}

		if m := bracketPattern.FindStringSubmatch(key); m != nil {
			name := firstGroup(m[1:])
			name = sanitizeKey(name)
			options[name] = append(options[name], flatten(vals)...)
			continue
		}

		if handlePattern.MatchString(lower) || (barePattern.MatchString(lower) && !commonWords[lower]) {
			// Pending resolution in C3; stored keyed by the raw candidate.
			options[sanitizeKey(key)] = append(options[sanitizeKey(key)], flatten(vals)...)
			continue
		}
		// Anything else is ignored — never promoted silently to a filter field.
	}

	for name, vals := range options {
		deduped := dedup(sanitizeTerms(vals))
		if len(deduped) == 0 {
			delete(options, name)
			continue
		}
		options[name] = deduped
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

func firstGroup(groups []string) string {
	for _, g := range groups {
		if g != "" {
			return g
		}
	}
	return ""
}

func flatten(vals []string) []string {
	var out []string
	for _, v := range vals {
		out = append(out, splitCSV(v)...)
	}
	return out
}

func valuesFromJSON(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return splitCSV(t)
	case []interface{}:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, sanitizeTerm(s))
			}
		}
		return out
	default:
		return nil
	}
}
