package filterconfig

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"

	"storefront-query-engine/internal/domain"
)

// NoFilterHash is the constant fingerprint for a null configuration.
const NoFilterHash = "no-filter"

// canonicalOption is the sort-canonicalized, hash-relevant projection of one
// FilterOption, per spec §4.4.
type canonicalOption struct {
	Handle           string   `json:"handle"`
	OptionType       string   `json:"optionType"`
	Status           string   `json:"status"`
	VariantOptionKey string   `json:"variantOptionKey"`
	TargetScope      string   `json:"targetScope"`
	AllowedOptions   []string `json:"allowedOptions"`
	SelectedValues   []string `json:"selectedValues"`
	BaseOptionType   string   `json:"baseOptionType"`
}

type canonicalConfig struct {
	ID          string            `json:"id"`
	Version     int               `json:"version"`
	UpdatedAt   string            `json:"updatedAt"`
	TargetScope string            `json:"targetScope"`
	Options     []canonicalOption `json:"options"`
}

// Hash returns the 12-hex-digit config-hash fingerprint, per spec §4.4.
// A nil configuration yields NoFilterHash.
func Hash(c *domain.FilterConfiguration) string {
	if c == nil {
		return NoFilterHash
	}

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = c.CreatedAt
	}

	options := make([]canonicalOption, 0, len(c.Options))
	for _, opt := range c.Options {
		allowed := append([]string(nil), opt.AllowedOptions...)
		sort.Strings(allowed)
		selected := append([]string(nil), opt.OptionSettings.SelectedValues...)
		sort.Strings(selected)

		options = append(options, canonicalOption{
			Handle:           opt.Handle,
			OptionType:       opt.OptionType,
			Status:           opt.Status,
			VariantOptionKey: opt.OptionSettings.VariantOptionKey,
			TargetScope:      opt.TargetScope,
			AllowedOptions:   allowed,
			SelectedValues:   selected,
			BaseOptionType:   opt.OptionSettings.BaseOptionType,
		})
	}
	sort.Slice(options, func(i, j int) bool {
		return options[i].Handle < options[j].Handle
	})

	canon := canonicalConfig{
		ID:          c.ID,
		Version:     c.Version,
		UpdatedAt:   updatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		TargetScope: c.TargetScope,
		Options:     options,
	}

	// encoding/json sorts map keys but not struct fields; struct field order
	// here is fixed by declaration, which is our canonical order.
	payload, err := json.Marshal(canon)
	if err != nil {
		return NoFilterHash
	}

	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])[:12]
}
