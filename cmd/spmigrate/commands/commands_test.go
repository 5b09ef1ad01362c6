package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spmigrate/domain/principal"
	"spmigrate/interfaces/web/presenters"
	"spmigrate/logging"
)

func TestReadPrincipals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "principals.txt")
	require.NoError(t, os.WriteFile(path, []byte("# export\nCONTOSO\\jdoe\n\n  i:0#.w|contoso\\asmith  \n"), 0o600))

	got, err := readPrincipals(&cobra.Command{}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{`CONTOSO\jdoe`, `i:0#.w|contoso\asmith`}, got)

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("old.user\n"))
	got, err = readPrincipals(cmd, "-")
	require.NoError(t, err)
	assert.Equal(t, []string{"old.user"}, got)

	_, err = readPrincipals(&cobra.Command{}, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestWriteResults(t *testing.T) {
	results := []principal.ResolutionResult{
		principal.Resolved(`CONTOSO\jdoe`, "jdoe@contoso.com", principal.SourceDirectoryLookup),
		principal.Unresolved(`CONTOSO\ghost`),
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, "table", "run-1", results))
		out := buf.String()
		assert.Contains(t, out, "jdoe@contoso.com")
		assert.Contains(t, out, "directory_lookup")
		assert.Contains(t, out, "1 of 2 resolved (run run-1)")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, "json", "run-1", results))

		var view presenters.ResolutionListView
		require.NoError(t, json.Unmarshal(buf.Bytes(), &view))
		assert.Equal(t, 2, view.Total)
		assert.Equal(t, "unresolved", view.Results[1].Source)
	})

	t.Run("unknown_format", func(t *testing.T) {
		assert.Error(t, writeResults(&bytes.Buffer{}, "yaml", "run-1", results))
	})
}

func TestWithRunID(t *testing.T) {
	var seen string
	h := withRunID("run-9")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logging.RunIDFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "run-9", seen)
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"resolve", "domain", "layouts", "detect-version", "serve"} {
		assert.True(t, names[want], want)
	}
}
