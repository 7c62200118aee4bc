package queryparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Sanitization(t *testing.T) {
	// S1: angle brackets stripped, spaces preserved, no error.
	raw := RawQuery{"color": {"Red <script>"}}
	fi := Parse(raw)
	require.NotNil(t, fi.Options)
	assert.Equal(t, []string{"Red script"}, fi.Options["color"])
}

func TestParse_SanitizationIdempotent(t *testing.T) {
	raw := RawQuery{"color": {"Red <script>\x00\x1f"}}
	once := Parse(raw)
	twice := Parse(RawQuery{"color": {sanitizeValue("Red <script>\x00\x1f")}})
	assert.Equal(t, once.Options["color"], twice.Options["color"])
}

func TestParse_CPIDCombination(t *testing.T) {
	// S5: cpid AND-ed with explicit collection.
	raw := RawQuery{
		"cpid":       {"gid://shopify/Collection/100"},
		"collection": {"200"},
	}
	fi := Parse(raw)
	assert.ElementsMatch(t, []string{"200", "100"}, fi.Collections)
}

func TestParse_CPIDAloneSetsCollections(t *testing.T) {
	raw := RawQuery{"cpid": {"gid://shopify/Collection/55"}}
	fi := Parse(raw)
	assert.Equal(t, []string{"55"}, fi.Collections)
}

func TestParse_ReservedKeysNeverBecomeOptions(t *testing.T) {
	raw := RawQuery{
		"vendor": {"Nike"},
		"sort":   {"price:asc"},
		"page":   {"2"},
	}
	fi := Parse(raw)
	assert.Nil(t, fi.Options)
	assert.Equal(t, []string{"Nike"}, fi.Vendors)
	assert.Equal(t, "minPrice:asc", fi.Sort)
}

func TestParse_OptionBracketShape(t *testing.T) {
	raw := RawQuery{"options[Size]": {"M,XL"}}
	fi := Parse(raw)
	assert.ElementsMatch(t, []string{"M", "XL"}, fi.Options["Size"])
}

func TestParse_OptionsJSONBody(t *testing.T) {
	raw := RawQuery{"options": {`{"Color":["Red","Blue"]}`}}
	fi := Parse(raw)
	assert.ElementsMatch(t, []string{"Red", "Blue"}, fi.Options["Color"])
}

func TestParse_MalformedOptionsJSONIgnoredNotRejected(t *testing.T) {
	raw := RawQuery{
		"options": {`{not json`},
		"vendor":  {"Nike"},
	}
	fi := Parse(raw)
	assert.Equal(t, []string{"Nike"}, fi.Vendors)
}

func TestParse_HandleHeuristic(t *testing.T) {
	raw := RawQuery{"pr_a3k9x": {"M,XL"}}
	fi := Parse(raw)
	assert.ElementsMatch(t, []string{"M", "XL"}, fi.Options["pr_a3k9x"])
}

func TestParse_CommonWordBlocklisted(t *testing.T) {
	raw := RawQuery{"black": {"true"}}
	fi := Parse(raw)
	assert.Nil(t, fi.Options)
}

func TestParse_PageLimitClamping(t *testing.T) {
	fi := Parse(RawQuery{"page": {"0"}, "limit": {"0"}})
	assert.Equal(t, 1, fi.Page)
	assert.Equal(t, 1, fi.Limit)

	fi = Parse(RawQuery{"limit": {"500"}})
	assert.Equal(t, 100, fi.Limit)
}

func TestParse_UnknownSortFallsBack(t *testing.T) {
	fi := Parse(RawQuery{"sort": {"garbage"}})
	assert.Equal(t, "", fi.Sort)
}

func TestParse_BadNumericDroppedSilently(t *testing.T) {
	fi := Parse(RawQuery{"priceMin": {"not-a-number"}})
	assert.Nil(t, fi.PriceMin)
}

func TestParse_OversizeTruncatesNeverRejects(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	fi := Parse(RawQuery{"search": {string(long)}})
	assert.LessOrEqual(t, len(fi.Search), maxValueLen)
}
