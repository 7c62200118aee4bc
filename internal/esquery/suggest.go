package esquery

// SuggestRequest builds the ES completion-suggester body for title
// suggestions, per spec §4.6's "Suggestions" bullet.
func SuggestRequest(prefix string, size int) map[string]interface{} {
	return map[string]interface{}{
		"suggest": map[string]interface{}{
			"title-suggest": map[string]interface{}{
				"prefix": prefix,
				"completion": map[string]interface{}{
					"field": "title.suggest",
					"size":  size,
				},
			},
		},
	}
}

// PhraseSuggestRequest builds an ES phrase-suggester body for spelling
// correction candidates against field, per spec §4.6's "did you mean"
// bullet — the suggester name is fixed as "did-you-mean" so callers can
// decode it without passing the name back through.
func PhraseSuggestRequest(query, field string, size int) map[string]interface{} {
	return map[string]interface{}{
		"suggest": map[string]interface{}{
			"did-you-mean": map[string]interface{}{
				"text": query,
				"phrase": map[string]interface{}{
					"field": field,
					"size":  size,
				},
			},
		},
	}
}

