// Package esquery models Elasticsearch queries and aggregations as a closed
// sum type (spec §9) and compiles FilterInput + FilterConfiguration into
// them (C6).
package esquery

// Query is one node of the closed query sum type. Every concrete query type
// implements it via the unexported marker method, so only the types
// declared in this file can appear in a tree.
type Query interface {
	isQuery()
	toMap() map[string]interface{}
}

// Bool is a boolean compound query.
type Bool struct {
	Must               []Query
	Should             []Query
	Filter             []Query
	MinimumShouldMatch int
}

func (Bool) isQuery() {}
func (b Bool) toMap() map[string]interface{} {
	inner := map[string]interface{}{}
	if len(b.Must) > 0 {
		inner["must"] = queriesToMaps(b.Must)
	}
	if len(b.Should) > 0 {
		inner["should"] = queriesToMaps(b.Should)
		if b.MinimumShouldMatch > 0 {
			inner["minimum_should_match"] = b.MinimumShouldMatch
		}
	}
	if len(b.Filter) > 0 {
		inner["filter"] = queriesToMaps(b.Filter)
	}
	return map[string]interface{}{"bool": inner}
}

// Term is an exact-match single-value query.
type Term struct {
	Field string
	Value interface{}
}

func (Term) isQuery() {}
func (t Term) toMap() map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{t.Field: t.Value}}
}

// Terms is an exact-match multi-value (OR) query.
type Terms struct {
	Field  string
	Values []string
}

func (Terms) isQuery() {}
func (t Terms) toMap() map[string]interface{} {
	return map[string]interface{}{"terms": map[string]interface{}{t.Field: t.Values}}
}

// Range is a numeric/date range query; nil bounds are omitted.
type Range struct {
	Field string
	GTE   *float64
	LTE   *float64
	GT    *float64
	LT    *float64
}

func (Range) isQuery() {}
func (r Range) toMap() map[string]interface{} {
	bounds := map[string]interface{}{}
	if r.GTE != nil {
		bounds["gte"] = *r.GTE
	}
	if r.LTE != nil {
		bounds["lte"] = *r.LTE
	}
	if r.GT != nil {
		bounds["gt"] = *r.GT
	}
	if r.LT != nil {
		bounds["lt"] = *r.LT
	}
	return map[string]interface{}{"range": map[string]interface{}{r.Field: bounds}}
}

// MultiMatch is a boosted multi-field full-text query.
type MultiMatch struct {
	Query     string
	Fields    []string
	Type      string
	Operator  string
	Fuzziness string
}

func (MultiMatch) isQuery() {}
func (m MultiMatch) toMap() map[string]interface{} {
	inner := map[string]interface{}{
		"query":  m.Query,
		"fields": m.Fields,
	}
	if m.Type != "" {
		inner["type"] = m.Type
	}
	if m.Operator != "" {
		inner["operator"] = m.Operator
	}
	if m.Fuzziness != "" {
		inner["fuzziness"] = m.Fuzziness
	}
	return map[string]interface{}{"multi_match": inner}
}

// Nested wraps a query scoped to a nested path (e.g. "variants").
type Nested struct {
	Path  string
	Query Query
}

func (Nested) isQuery() {}
func (n Nested) toMap() map[string]interface{} {
	return map[string]interface{}{
		"nested": map[string]interface{}{
			"path":  n.Path,
			"query": n.Query.toMap(),
		},
	}
}

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) isQuery() {}
func (MatchAll) toMap() map[string]interface{} {
	return map[string]interface{}{"match_all": map[string]interface{}{}}
}

func queriesToMaps(qs []Query) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.toMap())
	}
	return out
}

// ToMap serializes a Query tree to a plain map at the ES request boundary.
func ToMap(q Query) map[string]interface{} {
	if q == nil {
		return MatchAll{}.toMap()
	}
	return q.toMap()
}

// Agg is one node of the closed aggregation sum type.
type Agg interface {
	isAgg()
	toMap() map[string]interface{}
}

// TermsAgg is a bucketed terms aggregation.
type TermsAgg struct {
	Field string
	Size  int
	Order string // "count_desc" or "" (default order)
}

func (TermsAgg) isAgg() {}
func (a TermsAgg) toMap() map[string]interface{} {
	inner := map[string]interface{}{
		"field": a.Field,
		"size":  a.Size,
	}
	if a.Order == "count_desc" {
		inner["order"] = map[string]interface{}{"_count": "desc"}
	}
	return map[string]interface{}{"terms": inner}
}

// StatsAgg computes min/max/avg/sum/count over a numeric field.
type StatsAgg struct {
	Field string
}

func (StatsAgg) isAgg() {}
func (a StatsAgg) toMap() map[string]interface{} {
	return map[string]interface{}{"stats": map[string]interface{}{"field": a.Field}}
}

// NestedAgg scopes a sub-aggregation to a nested path.
type NestedAgg struct {
	Path string
	Aggs map[string]Agg
}

func (NestedAgg) isAgg() {}
func (a NestedAgg) toMap() map[string]interface{} {
	return map[string]interface{}{
		"nested": map[string]interface{}{"path": a.Path},
		"aggs":   aggsToMap(a.Aggs),
	}
}

func aggsToMap(aggs map[string]Agg) map[string]interface{} {
	out := make(map[string]interface{}, len(aggs))
	for name, agg := range aggs {
		out[name] = agg.toMap()
	}
	return out
}

// AggsToMap serializes a named aggregation set to the ES request boundary.
func AggsToMap(aggs map[string]Agg) map[string]interface{} {
	return aggsToMap(aggs)
}
