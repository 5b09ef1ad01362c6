package usermapping

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"spmigrate/domain/events"
	"spmigrate/domain/principal"
	"spmigrate/test/helpers"
	"spmigrate/test/mocks"
)

func TestLoad_SampleFile(t *testing.T) {
	entries, err := Load(filepath.Join("testdata", "usermapping_sample.csv"))
	require.NoError(t, err)

	assert.Equal(t, []principal.MappingEntry{
		{Source: "old.user", Target: "new.user@tenant.onmicrosoft.com"},
		{Source: "Test.User3", Target: "t.user3@tenant.onmicrosoft.com"},
		{Source: `ALPHADELTA\SharePoint-Editors`, Target: "c:0t.c|tenant|6a1f2b3c-4d5e-4f60-8a9b-0c1d2e3f4a5b"},
		{Source: `i:0#.w|alphadelta\retired.user`, Target: "replacement@tenant.onmicrosoft.com"},
	}, entries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, principal.ErrFileNotFound)
}

func TestParse_SkipsMalformedRows(t *testing.T) {
	publisher := &mocks.MockResolutionEventPublisher{}
	publisher.On("PublishMappingRowSkipped", mock.MatchedBy(func(e events.MappingRowSkippedEvent) bool {
		return e.Path == "inline.csv" && e.Line == 2 && e.Reason == "missing delimiter"
	})).Once()
	publisher.On("PublishMappingRowSkipped", mock.MatchedBy(func(e events.MappingRowSkippedEvent) bool {
		return e.Line == 3 && e.Reason == "empty source"
	})).Once()
	publisher.On("PublishMappingRowSkipped", mock.MatchedBy(func(e events.MappingRowSkippedEvent) bool {
		return e.Line == 4 && e.Reason == "empty target"
	})).Once()

	input := strings.Join([]string{
		"alice,alice@tenant.onmicrosoft.com",
		"no-delimiter-here",
		" ,orphan@tenant.onmicrosoft.com",
		"bob,",
		"carol , carol@tenant.onmicrosoft.com , extra column ignored",
		"",
	}, "\n")

	entries, err := NewLoader(publisher).Parse(strings.NewReader(input), "inline.csv")
	require.NoError(t, err)
	assert.Equal(t, []principal.MappingEntry{
		{Source: "alice", Target: "alice@tenant.onmicrosoft.com"},
		{Source: "carol", Target: "carol@tenant.onmicrosoft.com"},
	}, entries)
	publisher.AssertExpectations(t)
}

func TestParse_HeaderOnlyOnFirstRow(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "source_target_header", input: "Source,Target\na,b\n", want: 1},
		{name: "sourceuser_targetuser_header", input: "SOURCEUSER,TargetUser\na,b\n", want: 1},
		{name: "header_shaped_later_row_is_data", input: "a,b\nsource,target\n", want: 2},
		{name: "no_header", input: "a,b\nc,d\n", want: 2},
		{name: "comment_before_header", input: "# exported from the farm\nsource,target\na,b\n", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := NewLoader(nil).Parse(strings.NewReader(tt.input), tt.name)
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestParse_DecodesByteOrderMarks(t *testing.T) {
	const content = "SourceUser,TargetUser\r\nold.user,new.user@tenant.onmicrosoft.com\r\n"

	t.Run("utf8_bom", func(t *testing.T) {
		input := append([]byte{0xEF, 0xBB, 0xBF}, content...)
		entries, err := NewLoader(nil).Parse(bytes.NewReader(input), "utf8.csv")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "old.user", entries[0].Source)
	})

	t.Run("utf16le_bom", func(t *testing.T) {
		encoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
		input, err := encoder.Bytes([]byte(content))
		require.NoError(t, err)

		entries, err := NewLoader(nil).Parse(bytes.NewReader(input), "utf16.csv")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "old.user", entries[0].Source)
		assert.Equal(t, "new.user@tenant.onmicrosoft.com", entries[0].Target)
	})
}

func TestLoader_LoadTable_LastRowWins(t *testing.T) {
	path := helpers.WriteFile(t, "usermapping.csv",
		"old.user,first@tenant.onmicrosoft.com\nOLD.USER,second@tenant.onmicrosoft.com\n")

	table, err := NewLoader(nil).LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())

	entry, ok := table.Lookup("old.user")
	require.True(t, ok)
	assert.Equal(t, "second@tenant.onmicrosoft.com", entry.Target)
}

func TestParse_StrayQuoteSkipsOnlyItsRow(t *testing.T) {
	publisher := &mocks.MockResolutionEventPublisher{}
	publisher.On("PublishMappingRowSkipped", mock.MatchedBy(func(e events.MappingRowSkippedEvent) bool {
		return e.Path == "quotes.csv" && e.Line == 1
	})).Once()

	input := strings.Join([]string{
		`"broken.user,x@tenant.onmicrosoft.com`,
		"old.user,new.user@tenant.onmicrosoft.com",
		"test.user3,t.user3@tenant.onmicrosoft.com",
		`"quoted.user",q@tenant.onmicrosoft.com`,
		"user4,u4@tenant.onmicrosoft.com",
		"",
	}, "\n")

	entries, err := NewLoader(publisher).Parse(strings.NewReader(input), "quotes.csv")
	require.NoError(t, err)
	assert.Equal(t, []principal.MappingEntry{
		{Source: "old.user", Target: "new.user@tenant.onmicrosoft.com"},
		{Source: "test.user3", Target: "t.user3@tenant.onmicrosoft.com"},
		{Source: "quoted.user", Target: "q@tenant.onmicrosoft.com"},
		{Source: "user4", Target: "u4@tenant.onmicrosoft.com"},
	}, entries)
	publisher.AssertExpectations(t)
}
