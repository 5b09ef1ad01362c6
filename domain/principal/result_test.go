package principal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	mapped := Resolved("a", "a@contoso.com", SourceMappingOverride)
	looked := Resolved("b", "b@contoso.com", SourceDirectoryLookup)
	missing := Unresolved("c")

	tests := []struct {
		name       string
		members    []ResolutionResult
		wantFound  bool
		wantSource Source
	}{
		{name: "all_mapped", members: []ResolutionResult{mapped, mapped}, wantFound: true, wantSource: SourceMappingOverride},
		{name: "mapped_and_directory", members: []ResolutionResult{mapped, looked}, wantFound: true, wantSource: SourceDirectoryLookup},
		{name: "any_unresolved", members: []ResolutionResult{looked, missing}, wantFound: false, wantSource: SourceUnresolved},
		{name: "single_member", members: []ResolutionResult{looked}, wantFound: true, wantSource: SourceDirectoryLookup},
		{name: "no_members", members: nil, wantFound: false, wantSource: SourceUnresolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine("in", "out", tt.members)
			assert.Equal(t, tt.wantFound, got.Found)
			assert.Equal(t, tt.wantSource, got.Source)
			assert.Equal(t, "in", got.Input)
		})
	}
}

func TestSource_StringRoundTrip(t *testing.T) {
	for _, s := range []Source{SourceUnresolved, SourceMappingOverride, SourceDirectoryLookup} {
		assert.Equal(t, s, ParseSource(s.String()))
	}
}
