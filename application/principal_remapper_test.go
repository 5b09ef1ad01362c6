package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"spmigrate/domain/events"
	"spmigrate/domain/migration"
	"spmigrate/domain/principal"
	"spmigrate/logging"
	"spmigrate/test/helpers"
)

type remapperFixture struct {
	directory *helpers.FakeDirectory
	remapper  *PrincipalRemapper
}

func newRemapperFixture(t *testing.T, cfg migration.TransformationConfig, mapping *principal.MappingTable) *remapperFixture {
	t.Helper()
	fake := helpers.NewFakeDirectory("contoso.com", testTrusts()...)
	fake.AddUser("contoso.com", "test.user3", "t.user3@contoso.com", contosoSID+"-1103")
	fake.AddUser("contoso.com", "old.user", "old.user@contoso.com", "")
	fake.AddUser("alphadelta.local", "jdoe", "john.doe@alphadelta.com", alphadeltaSID+"-1201")
	fake.AddGroup("contoso.com", "Site Owners", "", "owners@contoso.com", contosoSID+"-1129")
	fake.AddGroup("alphadelta.local", "Editors", "", "editors@alphadelta.com", alphadeltaSID+"-1130")

	search := NewPrincipalSearchService(fake, NewDomainResolver(fake, cfg), cfg)
	return &remapperFixture{
		directory: fake,
		remapper:  NewPrincipalRemapper(cfg, mapping, search, nil),
	}
}

func TestPrincipalRemapper_MappingOverride(t *testing.T) {
	td := helpers.NewTestData()
	f := newRemapperFixture(t, td.OnPremConfig(), td.MappingTable("old.user", "new.user@tenant.onmicrosoft.com"))

	result, err := f.remapper.Remap(helpers.TestContext(), "old.user")
	require.NoError(t, err)
	assert.Equal(t, "new.user@tenant.onmicrosoft.com", result.Principal)
	assert.True(t, result.Found)
	assert.Equal(t, principal.SourceMappingOverride, result.Source)
	assert.Equal(t, 0, f.directory.QueryCount(), "override wins even though the directory knows old.user")
}

func TestPrincipalRemapper_DirectoryLookup(t *testing.T) {
	f := newRemapperFixture(t, helpers.NewTestData().OnPremConfig(), nil)

	result, err := f.remapper.Remap(helpers.TestContext(), "test.user3")
	require.NoError(t, err)
	assert.Equal(t, "t.user3@contoso.com", result.Principal)
	assert.True(t, result.Found)
	assert.Equal(t, principal.SourceDirectoryLookup, result.Source)
	assert.Equal(t, "test.user3", result.Input)
}

func TestPrincipalRemapper_UnresolvedReturnsInput(t *testing.T) {
	f := newRemapperFixture(t, helpers.NewTestData().OnPremConfig(), nil)

	result, err := f.remapper.Remap(helpers.TestContext(), "nobody.here")
	require.NoError(t, err)
	assert.Equal(t, "nobody.here", result.Principal)
	assert.False(t, result.Found)
	assert.Equal(t, principal.SourceUnresolved, result.Source)
	// tried as a user, then as a group
	assert.Equal(t, 2, f.directory.QueryCount())
}

func TestPrincipalRemapper_PlainNameFallsBackToGroup(t *testing.T) {
	f := newRemapperFixture(t, helpers.NewTestData().OnPremConfig(), nil)

	result, err := f.remapper.Remap(helpers.TestContext(), "Site Owners")
	require.NoError(t, err)
	assert.Equal(t, "owners@contoso.com", result.Principal)
	assert.Equal(t, principal.SourceDirectoryLookup, result.Source)
}

func TestPrincipalRemapper_ClaimsReencoding(t *testing.T) {
	td := helpers.NewTestData()
	mapping := td.MappingTable(
		`CONTOSO\mapped.user`, "mapped@tenant.onmicrosoft.com",
		`i:0#.w|contoso\claim.user`, "i:0#.f|membership|claim@tenant.onmicrosoft.com",
		"legacy.group", "c:0t.c|tenant|0b6e9c2a-94f5-4a39-8a1c-3f2c2d1f0e11",
	)
	f := newRemapperFixture(t, td.OnPremConfig(), mapping)

	tests := []struct {
		name   string
		raw    string
		want   string
		source principal.Source
	}{
		{
			name:   "windows_user_claim_from_directory",
			raw:    `i:0#.w|ALPHADELTA\jdoe`,
			want:   "i:0#.f|membership|john.doe@alphadelta.com",
			source: principal.SourceDirectoryLookup,
		},
		{
			name:   "windows_group_claim_sid_from_directory",
			raw:    "c:0+.w|s-1-5-21-4000-5000-6000-1130",
			want:   "c:0t.c|tenant|editors@alphadelta.com",
			source: principal.SourceDirectoryLookup,
		},
		{
			name:   "windows_user_claim_from_mapping_identifier",
			raw:    `i:0#.w|CONTOSO\mapped.user`,
			want:   "i:0#.f|membership|mapped@tenant.onmicrosoft.com",
			source: principal.SourceMappingOverride,
		},
		{
			name:   "whole_token_mapping_is_verbatim",
			raw:    `i:0#.w|CONTOSO\Claim.User`,
			want:   "i:0#.f|membership|claim@tenant.onmicrosoft.com",
			source: principal.SourceMappingOverride,
		},
		{
			name:   "claims_shaped_target_replaces_token",
			raw:    `c:0+.w|CONTOSO\legacy.group`,
			want:   "c:0t.c|tenant|0b6e9c2a-94f5-4a39-8a1c-3f2c2d1f0e11",
			source: principal.SourceMappingOverride,
		},
		{
			name:   "unprefixed_stays_unprefixed",
			raw:    `ALPHADELTA\jdoe`,
			want:   "john.doe@alphadelta.com",
			source: principal.SourceDirectoryLookup,
		},
		{
			name:   "everyone_sid_claim",
			raw:    "c:0+.w|S-1-1-0",
			want:   principal.EveryoneClaim,
			source: principal.SourceDirectoryLookup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.remapper.Remap(helpers.TestContext(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Principal)
			assert.Equal(t, tt.source, result.Source)
			assert.True(t, result.Found)
		})
	}
}

func TestPrincipalRemapper_TargetShapedInputPassesThrough(t *testing.T) {
	f := newRemapperFixture(t, helpers.NewTestData().OnPremConfig(), nil)

	for _, raw := range []string{
		"i:0#.f|membership|someone@tenant.onmicrosoft.com",
		principal.EveryoneClaim,
		"someone@contoso.com",
	} {
		result, err := f.remapper.Remap(helpers.TestContext(), raw)
		require.NoError(t, err)
		assert.Equal(t, raw, result.Principal)
		assert.False(t, result.Found)
	}
	assert.Equal(t, 0, f.directory.QueryCount())
}

func TestPrincipalRemapper_CompoundInput(t *testing.T) {
	td := helpers.NewTestData()
	f := newRemapperFixture(t, td.OnPremConfig(), td.MappingTable("old.user", "new.user@tenant.onmicrosoft.com"))

	t.Run("all_resolved", func(t *testing.T) {
		result, err := f.remapper.Remap(helpers.TestContext(), "old.user;test.user3")
		require.NoError(t, err)
		assert.Equal(t, "new.user@tenant.onmicrosoft.com;t.user3@contoso.com", result.Principal)
		assert.True(t, result.Found)
		assert.Equal(t, principal.SourceDirectoryLookup, result.Source)
		require.Len(t, result.Members, 2)
		assert.Equal(t, principal.SourceMappingOverride, result.Members[0].Source)
	})

	t.Run("one_unresolved", func(t *testing.T) {
		result, err := f.remapper.Remap(helpers.TestContext(), "old.user;ghost")
		require.NoError(t, err)
		assert.Equal(t, "new.user@tenant.onmicrosoft.com;ghost", result.Principal)
		assert.False(t, result.Found)
		assert.Equal(t, principal.SourceUnresolved, result.Source)
	})

	t.Run("separator_whitespace_kept", func(t *testing.T) {
		result, err := f.remapper.Remap(helpers.TestContext(), "old.user; ghost ;test.user3")
		require.NoError(t, err)
		assert.Equal(t, "new.user@tenant.onmicrosoft.com; ghost ;t.user3@contoso.com", result.Principal)
		assert.Equal(t, principal.SourceUnresolved, result.Source)
	})

	t.Run("mixed_claim_keeps_prefix", func(t *testing.T) {
		raw := "c:0+.w|S-1-5-21-4000-5000-6000-1130,S-1-5-21-4000-5000-6000-9999"
		result, err := f.remapper.Remap(helpers.TestContext(), raw)
		require.NoError(t, err)
		assert.Equal(t, "c:0+.w|editors@alphadelta.com,S-1-5-21-4000-5000-6000-9999", result.Principal)
		assert.Equal(t, principal.SourceUnresolved, result.Source)
	})
}

func TestPrincipalRemapper_NoLookupsWhenDisabled(t *testing.T) {
	td := helpers.NewTestData()

	t.Run("empty_input", func(t *testing.T) {
		f := newRemapperFixture(t, td.OnPremConfig(), nil)
		result, err := f.remapper.Remap(helpers.TestContext(), "")
		require.NoError(t, err)
		assert.Equal(t, principal.Unresolved(""), result)
		assert.Equal(t, 0, f.directory.QueryCount())
	})

	t.Run("skip_user_mapping", func(t *testing.T) {
		cfg := td.OnPremConfig()
		cfg.SkipUserMapping = true
		f := newRemapperFixture(t, cfg, td.MappingTable("old.user", "new.user@tenant.onmicrosoft.com"))
		result, err := f.remapper.Remap(helpers.TestContext(), "old.user")
		require.NoError(t, err)
		assert.Equal(t, "old.user", result.Principal)
		assert.Equal(t, principal.SourceUnresolved, result.Source)
		assert.Equal(t, 0, f.directory.QueryCount())
	})

	t.Run("online_source", func(t *testing.T) {
		cfg := td.OnPremConfig()
		cfg.SourceVersion = migration.SourceVersionSPO
		f := newRemapperFixture(t, cfg, td.MappingTable("old.user", "new.user@tenant.onmicrosoft.com"))

		result, err := f.remapper.Remap(helpers.TestContext(), "test.user3")
		require.NoError(t, err)
		assert.Equal(t, "test.user3", result.Principal)

		// overrides still apply
		result, err = f.remapper.Remap(helpers.TestContext(), "old.user")
		require.NoError(t, err)
		assert.Equal(t, "new.user@tenant.onmicrosoft.com", result.Principal)
		assert.Equal(t, 0, f.directory.QueryCount())
	})

	t.Run("no_search_service", func(t *testing.T) {
		remapper := NewPrincipalRemapper(td.OnPremConfig(), nil, nil, nil)
		assert.False(t, remapper.LiveResolutionEnabled())
		result, err := remapper.Remap(helpers.TestContext(), "test.user3")
		require.NoError(t, err)
		assert.Equal(t, principal.Unresolved("test.user3"), result)
	})
}

func TestPrincipalRemapper_IsIdempotent(t *testing.T) {
	f := newRemapperFixture(t, helpers.NewTestData().OnPremConfig(), nil)

	first, err := f.remapper.Remap(helpers.TestContext(), `i:0#.w|ALPHADELTA\jdoe`)
	require.NoError(t, err)
	second, err := f.remapper.Remap(helpers.TestContext(), `i:0#.w|ALPHADELTA\jdoe`)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPrincipalRemapper_PublishesEvents(t *testing.T) {
	td := helpers.NewTestData()
	cfg := td.OnPremConfig()
	m := helpers.NewMockCollaborators()
	fake := helpers.NewFakeDirectory("contoso.com", testTrusts()...)
	fake.AddUser("contoso.com", "test.user3", "t.user3@contoso.com", "")
	search := NewPrincipalSearchService(fake, NewDomainResolver(fake, cfg), cfg)
	remapper := NewPrincipalRemapper(cfg, nil, search, m.Publisher)

	m.Publisher.On("PublishPrincipalResolved", mock.MatchedBy(func(e events.PrincipalResolvedEvent) bool {
		return e.RunID == "run-42" &&
			e.Result.Principal == "t.user3@contoso.com" &&
			e.Result.Source == principal.SourceDirectoryLookup
	})).Once()

	ctx := logging.ContextWithRunID(context.Background(), "run-42")
	_, err := remapper.Remap(ctx, "test.user3")
	require.NoError(t, err)

	fake.QueryErr = errors.New("server down")
	m.Publisher.On("PublishResolutionFailed", mock.MatchedBy(func(e events.ResolutionFailedEvent) bool {
		return e.RunID == "run-42" && e.Input == "someone.else" && errors.Is(e.Error, principal.ErrDirectoryQuery)
	})).Once()

	_, err = remapper.Remap(ctx, "someone.else")
	require.Error(t, err)
	assert.ErrorIs(t, err, principal.ErrDirectoryQuery)

	m.Publisher.AssertExpectations(t)
}

type stubTableLoader struct {
	table *principal.MappingTable
	err   error
	calls int
}

func (s *stubTableLoader) LoadTable(string) (*principal.MappingTable, error) {
	s.calls++
	return s.table, s.err
}

func TestNewPrincipalRemapperFromConfig(t *testing.T) {
	td := helpers.NewTestData()

	t.Run("loads_configured_mapping_file", func(t *testing.T) {
		cfg := td.OnPremConfig()
		cfg.UserMappingFile = "usermapping.csv"
		loader := &stubTableLoader{table: td.MappingTable("a", "b@tenant.onmicrosoft.com")}

		remapper, err := NewPrincipalRemapperFromConfig(cfg, loader, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, loader.calls)
		assert.Equal(t, 1, remapper.MappingEntries())
	})

	t.Run("missing_file_propagates", func(t *testing.T) {
		cfg := td.OnPremConfig()
		cfg.UserMappingFile = "missing.csv"
		loader := &stubTableLoader{err: principal.ErrFileNotFound}

		_, err := NewPrincipalRemapperFromConfig(cfg, loader, nil, nil)
		assert.ErrorIs(t, err, principal.ErrFileNotFound)
	})

	t.Run("no_mapping_file", func(t *testing.T) {
		loader := &stubTableLoader{}
		remapper, err := NewPrincipalRemapperFromConfig(td.OnPremConfig(), loader, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, loader.calls)
		assert.Equal(t, 0, remapper.MappingEntries())
	})

	t.Run("invalid_config", func(t *testing.T) {
		cfg := td.OnPremConfig()
		cfg.LDAPConnectionString = "contoso.com"
		_, err := NewPrincipalRemapperFromConfig(cfg, &stubTableLoader{}, nil, nil)
		assert.Error(t, err)
	})
}
