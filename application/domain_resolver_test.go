package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"spmigrate/domain/directory"
	"spmigrate/domain/principal"
	"spmigrate/test/helpers"
)

const (
	contosoSID    = "S-1-5-21-1000-2000-3000"
	alphadeltaSID = "S-1-5-21-4000-5000-6000"
)

func testTrusts() []directory.TrustedDomain {
	td := helpers.NewTestData()
	return []directory.TrustedDomain{
		td.Trust("CONTOSO", "contoso.com", contosoSID),
		td.Trust("ALPHADELTA", "alphadelta.local", alphadeltaSID),
	}
}

func TestBuildLdapConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		fqdn    string
		want    string
		wantErr bool
	}{
		{name: "simple", fqdn: "contoso.com", want: "LDAP://contoso.com"},
		{name: "nested", fqdn: "emea.corp.contoso.com", want: "LDAP://emea.corp.contoso.com"},
		{name: "hyphen_inside_label", fqdn: "alpha-delta.local", want: "LDAP://alpha-delta.local"},
		{name: "single_label", fqdn: "ALPHADELTA", want: "LDAP://ALPHADELTA"},
		{name: "empty", fqdn: "", wantErr: true},
		{name: "blank", fqdn: "   ", wantErr: true},
		{name: "empty_label", fqdn: "contoso..com", wantErr: true},
		{name: "trailing_dot_label", fqdn: "contoso.com.", wantErr: true},
		{name: "leading_hyphen", fqdn: "-contoso.com", wantErr: true},
		{name: "trailing_hyphen", fqdn: "contoso-.com", wantErr: true},
		{name: "underscore", fqdn: "con_toso.com", wantErr: true},
		{name: "space", fqdn: "con toso.com", wantErr: true},
		{name: "too_long", fqdn: strings.Repeat("a.", 127) + "com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildLdapConnectionString(tt.fqdn)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, principal.ErrInvalidDomain)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectionStringDomain(t *testing.T) {
	assert.Equal(t, "contoso.com", ConnectionStringDomain("LDAP://contoso.com"))
	assert.Equal(t, "contoso.com", ConnectionStringDomain("ldap://contoso.com:389/DC=contoso,DC=com"))
	assert.Equal(t, "contoso.com", ConnectionStringDomain("contoso.com"))
}

func TestDomainResolver_ResolveFriendlyDomain_CachesCaseInsensitively(t *testing.T) {
	fake := helpers.NewFakeDirectory("contoso.com", testTrusts()...)
	resolver := NewDomainResolver(fake, helpers.NewTestData().OnPremConfig())
	ctx := helpers.TestContext()

	first, err := resolver.ResolveFriendlyDomainToLdap(ctx, "alphadelta")
	require.NoError(t, err)
	second, err := resolver.ResolveFriendlyDomainToLdap(ctx, "ALPHADELTA")
	require.NoError(t, err)

	assert.Equal(t, "alphadelta.local", first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.TrustCalls())
	assert.Equal(t, 0, fake.QueryCount())
}

func TestDomainResolver_ResolveFriendlyDomain_FQDNInputNeedsNoQuery(t *testing.T) {
	fake := helpers.NewFakeDirectory("contoso.com", testTrusts()...)
	resolver := NewDomainResolver(fake, helpers.NewTestData().OnPremConfig())

	got, err := resolver.ResolveFriendlyDomainToLdap(helpers.TestContext(), "emea.contoso.com")
	require.NoError(t, err)
	assert.Equal(t, "emea.contoso.com", got)
	assert.Equal(t, 0, fake.TrustCalls())

	_, err = resolver.ResolveFriendlyDomainToLdap(helpers.TestContext(), "emea..contoso.com")
	assert.ErrorIs(t, err, principal.ErrInvalidDomain)
}

func TestDomainResolver_ResolveFriendlyDomain_UnknownAndEmpty(t *testing.T) {
	fake := helpers.NewFakeDirectory("contoso.com", testTrusts()...)
	resolver := NewDomainResolver(fake, helpers.NewTestData().OnPremConfig())

	_, err := resolver.ResolveFriendlyDomainToLdap(helpers.TestContext(), "NOWHERE")
	assert.ErrorIs(t, err, principal.ErrInvalidDomain)

	_, err = resolver.ResolveFriendlyDomainToLdap(helpers.TestContext(), "  ")
	assert.ErrorIs(t, err, principal.ErrInvalidDomain)
}

func TestDomainResolver_ResolveFriendlyDomain_MatchesFirstLabelWithoutNetBIOSName(t *testing.T) {
	fake := helpers.NewFakeDirectory("contoso.com", directory.TrustedDomain{FQDN: "fabrikam.net"})
	resolver := NewDomainResolver(fake, helpers.NewTestData().OnPremConfig())

	got, err := resolver.ResolveFriendlyDomainToLdap(helpers.TestContext(), "Fabrikam")
	require.NoError(t, err)
	assert.Equal(t, "fabrikam.net", got)
}

func TestDomainResolver_FailuresAreNotCached(t *testing.T) {
	fake := helpers.NewFakeDirectory("contoso.com", testTrusts()...)
	fake.TrustErr = principal.ErrDirectoryQuery
	resolver := NewDomainResolver(fake, helpers.NewTestData().OnPremConfig())
	ctx := helpers.TestContext()

	_, err := resolver.ResolveFriendlyDomainToLdap(ctx, "ALPHADELTA")
	require.Error(t, err)
	assert.ErrorIs(t, err, principal.ErrDirectoryQuery)

	fake.TrustErr = nil
	got, err := resolver.ResolveFriendlyDomainToLdap(ctx, "ALPHADELTA")
	require.NoError(t, err)
	assert.Equal(t, "alphadelta.local", got)
	assert.Equal(t, 2, fake.TrustCalls())
}

func TestDomainResolver_ConcurrentFirstLookupsShareOneQuery(t *testing.T) {
	fake := helpers.NewFakeDirectory("contoso.com", testTrusts()...)
	fake.TrustDelay = 50 * time.Millisecond
	resolver := NewDomainResolver(fake, helpers.NewTestData().OnPremConfig())

	const callers = 16
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			name := "alphadelta"
			if i%2 == 0 {
				name = "AlphaDelta"
			}
			results[i], errs[i] = resolver.ResolveFriendlyDomainToLdap(context.Background(), name)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "alphadelta.local", results[i])
	}
	assert.Equal(t, 1, fake.TrustCalls())
}

func TestDomainResolver_SharedLookupOutlivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var lookupErr error

	collab := helpers.NewMockCollaborators()
	collab.Directory.On("GetTrustedDomains", mock.Anything).Run(func(args mock.Arguments) {
		close(started)
		<-release
		lookupErr = args.Get(0).(context.Context).Err()
	}).Return(testTrusts(), nil).Once()
	resolver := NewDomainResolver(collab.Directory, helpers.NewTestData().OnPremConfig())

	cancelledCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelledErr := make(chan error, 1)
	go func() {
		_, err := resolver.ResolveFriendlyDomainToLdap(cancelledCtx, "ALPHADELTA")
		cancelledErr <- err
	}()
	<-started

	type result struct {
		fqdn string
		err  error
	}
	live := make(chan result, 1)
	go func() {
		fqdn, err := resolver.ResolveFriendlyDomainToLdap(context.Background(), "alphadelta")
		live <- result{fqdn, err}
	}()

	cancel()
	err := <-cancelledErr
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, principal.ErrDirectoryQuery)

	close(release)
	got := <-live
	require.NoError(t, got.err)
	assert.Equal(t, "alphadelta.local", got.fqdn)
	assert.NoError(t, lookupErr)
	collab.AssertAllExpectations(t)
}

func TestDomainResolver_GetCurrentComputerDomain(t *testing.T) {
	t.Run("cached_after_success", func(t *testing.T) {
		m := helpers.NewMockCollaborators()
		m.Directory.On("GetJoinedDomain", mock.Anything).Return("contoso.com.", nil).Once()
		resolver := NewDomainResolver(m.Directory, helpers.NewTestData().OnPremConfig())

		for i := 0; i < 3; i++ {
			got, err := resolver.GetCurrentComputerDomain(helpers.TestContext())
			require.NoError(t, err)
			assert.Equal(t, "contoso.com", got)
		}
		m.Directory.AssertExpectations(t)
	})

	t.Run("not_domain_joined", func(t *testing.T) {
		m := helpers.NewMockCollaborators()
		m.Directory.On("GetJoinedDomain", mock.Anything).Return("", errors.New("no realm configured"))
		resolver := NewDomainResolver(m.Directory, helpers.NewTestData().OnPremConfig())

		_, err := resolver.GetCurrentComputerDomain(helpers.TestContext())
		assert.ErrorIs(t, err, principal.ErrDirectoryUnavailable)
	})

	t.Run("no_directory", func(t *testing.T) {
		resolver := NewDomainResolver(nil, helpers.NewTestData().OnPremConfig())

		_, err := resolver.GetCurrentComputerDomain(helpers.TestContext())
		assert.ErrorIs(t, err, principal.ErrDirectoryUnavailable)

		_, err = resolver.ResolveFriendlyDomainToLdap(helpers.TestContext(), "CONTOSO")
		assert.ErrorIs(t, err, principal.ErrDirectoryUnavailable)
	})
}

func TestDomainResolver_DefaultLdapConnectionString(t *testing.T) {
	t.Run("configured_override", func(t *testing.T) {
		fake := helpers.NewFakeDirectory("contoso.com")
		cfg := helpers.NewTestData().OnPremConfig()
		cfg.LDAPConnectionString = "LDAP://corp.fabrikam.net"
		resolver := NewDomainResolver(fake, cfg)

		got, err := resolver.DefaultLdapConnectionString(helpers.TestContext())
		require.NoError(t, err)
		assert.Equal(t, "LDAP://corp.fabrikam.net", got)
		assert.Equal(t, 0, fake.JoinedCalls())
	})

	t.Run("joined_domain", func(t *testing.T) {
		fake := helpers.NewFakeDirectory("contoso.com")
		resolver := NewDomainResolver(fake, helpers.NewTestData().OnPremConfig())

		got, err := resolver.DefaultLdapConnectionString(helpers.TestContext())
		require.NoError(t, err)
		assert.Equal(t, "LDAP://contoso.com", got)
	})
}

func TestDomainResolver_DomainForSID(t *testing.T) {
	fake := helpers.NewFakeDirectory("contoso.com", testTrusts()...)
	resolver := NewDomainResolver(fake, helpers.NewTestData().OnPremConfig())
	ctx := helpers.TestContext()

	owner, ok, err := resolver.DomainForSID(ctx, alphadeltaSID+"-1129")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alphadelta.local", owner.FQDN)

	_, ok, err = resolver.DomainForSID(ctx, "S-1-5-21-9-9-9-1129")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = resolver.DomainForSID(ctx, "S-1-5-32-544")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, fake.TrustCalls())
}
