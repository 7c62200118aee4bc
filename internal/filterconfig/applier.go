package filterconfig

import (
	"strings"

	"storefront-query-engine/internal/domain"
)

// NoneSentinel is the sentinel collection value that is guaranteed to match
// nothing, per spec §4.3 step 2.
const NoneSentinel = "__none__"

// standardFilterTable maps a lowercased-trimmed option key to the top-level
// FilterInput list it belongs in, per spec §4.3 step 4.
var standardFilterTable = map[string]string{
	"vendor":       "vendors",
	"producttype":  "productTypes",
	"product_type": "productTypes",
	"tag":          "tags",
	"tags":         "tags",
	"collection":   "collections",
	"collections":  "collections",
}

// Apply rewrites fi according to rc's rules, in the exact six-step order
// specified in spec §4.3. If rc is the NullConfig sentinel, fi is returned
// unchanged.
func Apply(rc *ResolvedConfig, fi domain.FilterInput, currentCollection string) domain.FilterInput {
	if rc.IsNull() {
		return fi
	}

	out := fi.Clone()
	cfg := rc.Config

	// Step 1: settings injection.
	if cfg.Settings.HideOutOfStockItems {
		out.HideOutOfStockItems = true
	}

	// Step 2: scope enforcement.
	if cfg.TargetScope == domain.ScopeEntitled && len(cfg.AllowedCollections) > 0 {
		allowed := cfg.AllowedCollectionIDs()
		if currentCollection != "" {
			if !cfg.HasCollection(currentCollection) {
				out.Collections = []string{NoneSentinel}
			} else {
				// Requested collection is allowed; drop any other requested
				// IDs (e.g. a cpid) that fall outside the allowed set.
				out.Collections = intersect(out.Collections, allowed)
			}
		} else if len(out.Collections) == 0 {
			out.Collections = append([]string(nil), allowed...)
		} else {
			out.Collections = intersect(out.Collections, allowed)
		}
	}

	// Step 3: handle resolution on options.
	if len(out.Options) > 0 {
		resolved := make(map[string][]string)
		for k, values := range out.Options {
			name, ok := rc.HandleToOption[k]
			if !ok {
				// Key that resolves to nothing is dropped.
				continue
			}
			resolved[name] = dedupAppend(resolved[name], values)
		}
		out.Options = resolved
	}

	// Step 4: standard-filter extraction.
	if len(out.Options) > 0 {
		for k, values := range out.Options {
			normalized := strings.ToLower(strings.TrimSpace(k))
			target, ok := standardFilterTable[normalized]
			if !ok {
				continue
			}
			switch target {
			case "vendors":
				out.Vendors = dedupAppend(out.Vendors, values)
			case "productTypes":
				out.ProductTypes = dedupAppend(out.ProductTypes, values)
			case "tags":
				out.Tags = dedupAppend(out.Tags, values)
			case "collections":
				out.Collections = dedupAppend(out.Collections, values)
			}
			delete(out.Options, k)
		}
	}

	// Step 5: per-option restriction.
	for _, opt := range cfg.Options {
		if opt.Status != domain.StatusPublished {
			continue
		}
		if opt.TargetScope != domain.ScopeEntitled || len(opt.AllowedOptions) == 0 {
			continue
		}
		name := optionName(opt)
		if values, ok := out.Options[name]; ok {
			intersected := intersect(values, opt.AllowedOptions)
			if len(intersected) == 0 {
				delete(out.Options, name)
			} else {
				out.Options[name] = intersected
			}
		}
		// No input values for this option: restriction only limits what the
		// user CAN select, not what must be selected — no action.
	}

	// Step 6: derived-option restriction.
	for _, opt := range cfg.Options {
		base := opt.OptionSettings.BaseOptionType
		selected := opt.OptionSettings.SelectedValues
		if base == "" || len(selected) == 0 {
			continue
		}
		if values, ok := out.Options[base]; ok {
			intersected := intersect(values, selected)
			if len(intersected) == 0 {
				delete(out.Options, base)
			} else {
				out.Options[base] = intersected
			}
		}
	}

	if len(out.Options) == 0 {
		out.Options = nil
	}

	return out
}

// intersect returns the elements of a that are also in b, preserving a's order.
func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

// dedupAppend appends src to dst, deduplicating on union.
func dedupAppend(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}
