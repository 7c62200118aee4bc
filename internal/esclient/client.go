// Package esclient wraps the Elasticsearch client as a process-wide
// singleton and exposes the narrow Search/MSearch surface C6 depends on,
// the way product-service/pkg/elasticsearch does.
package esclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"storefront-query-engine/internal/apierr"
	"storefront-query-engine/internal/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	instance *elasticsearch.Client
	once     sync.Once
)

// GetClient returns the singleton Elasticsearch client, constructing it on
// first call.
func GetClient(cfg *config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	var err error
	once.Do(func() {
		instance, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return instance, nil
}

// Client is the thin wrapper C6 executes compiled queries through.
type Client struct {
	es *elasticsearch.Client
}

// New wraps an already-constructed *elasticsearch.Client.
func New(es *elasticsearch.Client) *Client {
	return &Client{es: es}
}

// SearchResponse is the minimal decoded shape C7 needs from an ES response.
type SearchResponse struct {
	Total   int64                    `json:"total"`
	Hits    []map[string]interface{} `json:"hits"`
	Aggs    map[string]interface{}   `json:"aggregations"`
	Suggest map[string]interface{}   `json:"suggest"`
	Took    int64                    `json:"took"`
}

// SuggestOption is one decoded option from a completion or phrase suggester.
type SuggestOption struct {
	Text  string
	Score float64
}

// ExtractSuggestOptions decodes the named suggester's option list out of a
// decoded SearchResponse's Suggest map, per spec §4.6's suggestions bullet.
func ExtractSuggestOptions(suggest map[string]interface{}, suggesterName string) []SuggestOption {
	var out []SuggestOption
	raw, ok := suggest[suggesterName]
	if !ok {
		return out
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return out
	}
	for _, e := range entries {
		em, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		options, ok := em["options"].([]interface{})
		if !ok {
			continue
		}
		for _, o := range options {
			om, ok := o.(map[string]interface{})
			if !ok {
				continue
			}
			text, _ := om["text"].(string)
			score, _ := om["score"].(float64)
			out = append(out, SuggestOption{Text: text, Score: score})
		}
	}
	return out
}

// StatsResult is the decoded shape of an ES "stats" aggregation.
type StatsResult struct {
	Min *float64
	Max *float64
}

// Bucket is the decoded {key, doc_count} shape of one terms-aggregation
// bucket. Its fields mirror formatter.Bucket so callers can convert with a
// simple loop without either package importing the other.
type Bucket struct {
	Key      string
	DocCount int64
}

// ExtractBuckets pulls the bucket list out of a named terms aggregation in
// a decoded SearchResponse's Aggs map.
func ExtractBuckets(aggs map[string]interface{}, aggName string) []Bucket {
	var out []Bucket
	raw, ok := aggs[aggName]
	if !ok {
		return out
	}
	aggMap, ok := raw.(map[string]interface{})
	if !ok {
		return out
	}
	buckets, ok := aggMap["buckets"].([]interface{})
	if !ok {
		return out
	}
	for _, b := range buckets {
		bm, ok := b.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := bm["key"].(string)
		count, _ := bm["doc_count"].(float64)
		out = append(out, Bucket{Key: key, DocCount: int64(count)})
	}
	return out
}

// ExtractStats decodes a "stats" aggregation (optionally nested under a
// NestedAgg's sub-aggregation) into a StatsResult.
func ExtractStats(aggs map[string]interface{}, path ...string) StatsResult {
	cur := aggs
	for _, p := range path {
		raw, ok := cur[p]
		if !ok {
			return StatsResult{}
		}
		next, ok := raw.(map[string]interface{})
		if !ok {
			return StatsResult{}
		}
		cur = next
	}
	min, hasMin := cur["min"].(float64)
	max, hasMax := cur["max"].(float64)
	result := StatsResult{}
	if hasMin {
		result.Min = &min
	}
	if hasMax {
		result.Max = &max
	}
	return result
}

// Search runs a single query+aggs body against index and decodes the
// response. A 404 (missing index) is surfaced as apierr.IndexMissing, which
// callers substitute with an empty result per spec §7.
func (c *Client) Search(ctx context.Context, index string, body map[string]interface{}) (*SearchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierr.Wrap(apierr.UpstreamError, "failed to marshal query", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierr.Wrap(apierr.UpstreamTimeout, "elasticsearch request timed out", err)
		}
		return nil, apierr.Wrap(apierr.UpstreamError, "elasticsearch request failed", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, apierr.New(apierr.IndexMissing, "index not found: "+index)
	}
	if res.IsError() {
		return nil, apierr.New(apierr.UpstreamError, "elasticsearch returned an error: "+res.String())
	}

	return decodeSearchResponse(res.Body)
}

// MSearch batches several query bodies into one round-trip against index.
func (c *Client) MSearch(ctx context.Context, index string, bodies []map[string]interface{}) ([]*SearchResponse, error) {
	var buf bytes.Buffer
	header := map[string]interface{}{"index": index}
	for _, body := range bodies {
		headerBytes, _ := json.Marshal(header)
		buf.Write(headerBytes)
		buf.WriteByte('\n')
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, apierr.Wrap(apierr.UpstreamError, "failed to marshal msearch body", err)
		}
		buf.Write(bodyBytes)
		buf.WriteByte('\n')
	}

	req := esapi.MsearchRequest{Body: &buf}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierr.Wrap(apierr.UpstreamTimeout, "elasticsearch msearch timed out", err)
		}
		return nil, apierr.Wrap(apierr.UpstreamError, "elasticsearch msearch failed", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apierr.New(apierr.UpstreamError, "elasticsearch msearch returned an error: "+res.String())
	}

	var decoded struct {
		Responses []json.RawMessage `json:"responses"`
	}
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, apierr.Wrap(apierr.UpstreamError, "failed to decode msearch response", err)
	}

	out := make([]*SearchResponse, 0, len(decoded.Responses))
	for _, raw := range decoded.Responses {
		sr, err := decodeSearchResponse(bytes.NewReader(raw))
		if err != nil {
			out = append(out, &SearchResponse{})
			continue
		}
		out = append(out, sr)
	}
	return out, nil
}

func decodeSearchResponse(r interface {
	Read([]byte) (int, error)
}) (*SearchResponse, error) {
	var raw struct {
		Took int64 `json:"took"`
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations map[string]interface{} `json:"aggregations"`
		Suggest      map[string]interface{} `json:"suggest"`
	}

	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, apierr.Wrap(apierr.UpstreamError, "failed to decode search response", err)
	}

	hits := make([]map[string]interface{}, 0, len(raw.Hits.Hits))
	for _, h := range raw.Hits.Hits {
		hits = append(hits, h.Source)
	}

	return &SearchResponse{
		Total:   raw.Hits.Total.Value,
		Hits:    hits,
		Aggs:    raw.Aggregations,
		Suggest: raw.Suggest,
		Took:    raw.Took,
	}, nil
}
