package directory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spmigrate/domain/principal"
)

func noEnv(string) (string, bool) { return "", false }

func TestDiscoverJoinedDomain(t *testing.T) {
	krb5 := filepath.Join(t.TempDir(), "krb5.conf")
	require.NoError(t, os.WriteFile(krb5, []byte("[libdefaults]\n  default_realm = ALPHADELTA.LOCAL\n"), 0o600))

	tests := []struct {
		name    string
		src     JoinedDomainSources
		want    string
		wantErr bool
	}{
		{
			name: "userdnsdomain_wins",
			src: JoinedDomainSources{
				LookupEnv:  func(string) (string, bool) { return "CONTOSO.COM", true },
				Krb5Config: krb5,
			},
			want: "contoso.com",
		},
		{
			name: "krb5_default_realm",
			src:  JoinedDomainSources{LookupEnv: noEnv, Krb5Config: krb5},
			want: "alphadelta.local",
		},
		{
			name: "hostname_suffix",
			src: JoinedDomainSources{
				LookupEnv:  noEnv,
				Krb5Config: filepath.Join(t.TempDir(), "missing.conf"),
				Hostname:   func() (string, error) { return "sp01.corp.contoso.com", nil },
			},
			want: "corp.contoso.com",
		},
		{
			name: "workgroup_host",
			src: JoinedDomainSources{
				LookupEnv: noEnv,
				Hostname:  func() (string, error) { return "laptop", nil },
			},
			wantErr: true,
		},
		{
			name: "hostname_error",
			src: JoinedDomainSources{
				Hostname: func() (string, error) { return "", errors.New("no hostname") },
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiscoverJoinedDomain(tt.src)
			if tt.wantErr {
				assert.ErrorIs(t, err, principal.ErrDirectoryUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
