package filterconfig

import (
	"context"
	"testing"
	"time"

	"storefront-query-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	candidates []*domain.FilterConfiguration
}

func (f *fakeStore) CandidatesForTenant(ctx context.Context, shop string) ([]*domain.FilterConfiguration, error) {
	return f.candidates, nil
}

func sizeOption() domain.FilterOption {
	return domain.FilterOption{
		Handle:     "pr_a3k9x",
		OptionType: "Size",
		Status:     domain.StatusPublished,
	}
}

func vendorOption() domain.FilterOption {
	return domain.FilterOption{
		Handle:     "vnd_1",
		OptionType: "vendor",
		Status:     domain.StatusPublished,
	}
}

func TestResolve_HandleToOptionAndStandardNames(t *testing.T) {
	cfg := &domain.FilterConfiguration{
		ID:                "cfg1",
		Status:            domain.StatusPublished,
		DeploymentChannel: domain.ChannelApp,
		Options:           []domain.FilterOption{sizeOption(), vendorOption()},
		UpdatedAt:         time.Now(),
	}
	r := NewResolver(&fakeStore{candidates: []*domain.FilterConfiguration{cfg}}, time.Minute)

	rc, err := r.Resolve(context.Background(), "shop.myshopify.com", "", "")
	require.NoError(t, err)
	require.False(t, rc.IsNull())
	assert.Equal(t, "Size", rc.HandleToOption["pr_a3k9x"])
	assert.True(t, rc.StandardFilterNames["vendor"])
	assert.False(t, rc.StandardFilterNames["Size"])
}

func TestResolve_NullWhenNoEligible(t *testing.T) {
	cfg := &domain.FilterConfiguration{Status: domain.StatusDraft}
	r := NewResolver(&fakeStore{candidates: []*domain.FilterConfiguration{cfg}}, time.Minute)
	rc, err := r.Resolve(context.Background(), "shop.myshopify.com", "", "")
	require.NoError(t, err)
	assert.True(t, rc.IsNull())
}

func TestResolve_CollectionScopedPrecedence(t *testing.T) {
	now := time.Now()
	unscoped := &domain.FilterConfiguration{
		ID: "unscoped", Status: domain.StatusPublished, DeploymentChannel: domain.ChannelApp,
		UpdatedAt: now,
	}
	scoped := &domain.FilterConfiguration{
		ID: "scoped", Status: domain.StatusPublished, DeploymentChannel: domain.ChannelApp,
		AllowedCollections: []domain.AllowedCollection{{ID: "100"}},
		UpdatedAt:          now.Add(-time.Hour),
	}
	r := NewResolver(&fakeStore{candidates: []*domain.FilterConfiguration{unscoped, scoped}}, time.Minute)
	rc, err := r.Resolve(context.Background(), "shop.myshopify.com", "100", "")
	require.NoError(t, err)
	assert.Equal(t, "scoped", rc.Config.ID)
}

func TestApply_NullPassesThrough(t *testing.T) {
	fi := domain.FilterInput{Search: "shoes"}
	out := Apply(nullConfig, fi, "")
	assert.Equal(t, fi, out)
}

func TestApply_HandleResolution(t *testing.T) {
	// S2: handle resolves to Size, values carried through for compiler.
	cfg := &domain.FilterConfiguration{Options: []domain.FilterOption{sizeOption()}}
	rc := buildResolvedConfig(cfg)

	fi := domain.FilterInput{Options: map[string][]string{"pr_a3k9x": {"M", "XL"}}}
	out := Apply(rc, fi, "")

	assert.ElementsMatch(t, []string{"M", "XL"}, out.Options["Size"])
	assert.NotContains(t, out.Options, "pr_a3k9x")
}

func TestApply_StandardFilterExtraction(t *testing.T) {
	// S3: vendor handle extracted to top-level vendors, no optionPairs leftover.
	cfg := &domain.FilterConfiguration{Options: []domain.FilterOption{vendorOption()}}
	rc := buildResolvedConfig(cfg)

	fi := domain.FilterInput{Options: map[string][]string{"vnd_1": {"Nike"}}}
	out := Apply(rc, fi, "")

	assert.Equal(t, []string{"Nike"}, out.Vendors)
	assert.NotContains(t, out.Options, "vendor")
}

func TestApply_ScopeViolation(t *testing.T) {
	// S4: requested collection not in allowed set -> sentinel.
	cfg := &domain.FilterConfiguration{
		TargetScope:        domain.ScopeEntitled,
		AllowedCollections: []domain.AllowedCollection{{ID: "100"}},
	}
	rc := buildResolvedConfig(cfg)

	fi := domain.FilterInput{Collections: []string{"200"}}
	out := Apply(rc, fi, "200")

	assert.Equal(t, []string{NoneSentinel}, out.Collections)
}

func TestApply_ScopeNoCollectionRequested(t *testing.T) {
	cfg := &domain.FilterConfiguration{
		TargetScope:        domain.ScopeEntitled,
		AllowedCollections: []domain.AllowedCollection{{ID: "100"}, {ID: "200"}},
	}
	rc := buildResolvedConfig(cfg)

	out := Apply(rc, domain.FilterInput{}, "")
	assert.ElementsMatch(t, []string{"100", "200"}, out.Collections)
}

func TestApply_PerOptionRestriction(t *testing.T) {
	opt := domain.FilterOption{
		Handle: "color", OptionType: "Color", Status: domain.StatusPublished,
		TargetScope: domain.ScopeEntitled, AllowedOptions: []string{"Red", "Blue"},
	}
	cfg := &domain.FilterConfiguration{Options: []domain.FilterOption{opt}}
	rc := buildResolvedConfig(cfg)

	fi := domain.FilterInput{Options: map[string][]string{"color": {"Red", "Green"}}}
	out := Apply(rc, fi, "")
	assert.Equal(t, []string{"Red"}, out.Options["Color"])
}

func TestApply_DerivedOptionRestriction(t *testing.T) {
	opt := domain.FilterOption{
		Handle: "featured_color", OptionType: "FeaturedColor", Status: domain.StatusPublished,
		OptionSettings: domain.OptionSettings{BaseOptionType: "Color", SelectedValues: []string{"Red"}},
	}
	base := domain.FilterOption{Handle: "pr_color", OptionType: "Color", Status: domain.StatusPublished}
	cfg := &domain.FilterConfiguration{Options: []domain.FilterOption{base, opt}}
	rc := buildResolvedConfig(cfg)

	fi := domain.FilterInput{Options: map[string][]string{"pr_color": {"Red", "Blue"}}}
	out := Apply(rc, fi, "")
	assert.Equal(t, []string{"Red"}, out.Options["Color"])
}

func TestApply_EmptyAfterIntersectionRemoved(t *testing.T) {
	opt := domain.FilterOption{
		Handle: "color", OptionType: "Color", Status: domain.StatusPublished,
		TargetScope: domain.ScopeEntitled, AllowedOptions: []string{"Red"},
	}
	cfg := &domain.FilterConfiguration{Options: []domain.FilterOption{opt}}
	rc := buildResolvedConfig(cfg)

	fi := domain.FilterInput{Options: map[string][]string{"color": {"Green"}}}
	out := Apply(rc, fi, "")
	assert.NotContains(t, out.Options, "Color")
}

func TestHash_Deterministic(t *testing.T) {
	now := time.Now()
	cfg := &domain.FilterConfiguration{
		ID: "cfg1", Version: 3, UpdatedAt: now, TargetScope: domain.ScopeAll,
		Options: []domain.FilterOption{sizeOption(), vendorOption()},
	}
	reordered := &domain.FilterConfiguration{
		ID: "cfg1", Version: 3, UpdatedAt: now, TargetScope: domain.ScopeAll,
		Options: []domain.FilterOption{vendorOption(), sizeOption()},
	}
	assert.Equal(t, Hash(cfg), Hash(reordered))
}

func TestHash_NilIsNoFilter(t *testing.T) {
	assert.Equal(t, NoFilterHash, Hash(nil))
}

func TestHash_ChangesWithUpdatedAt(t *testing.T) {
	cfg1 := &domain.FilterConfiguration{ID: "cfg1", UpdatedAt: time.Now()}
	cfg2 := &domain.FilterConfiguration{ID: "cfg1", UpdatedAt: cfg1.UpdatedAt.Add(time.Hour)}
	assert.NotEqual(t, Hash(cfg1), Hash(cfg2))
}

func TestHash_Length(t *testing.T) {
	cfg := &domain.FilterConfiguration{ID: "cfg1"}
	assert.Len(t, Hash(cfg), 12)
}
