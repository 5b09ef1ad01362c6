package principal

// Source records how a principal was resolved
type Source int

const (
	SourceUnresolved Source = iota
	SourceMappingOverride
	SourceDirectoryLookup
)

// String returns the snake_case name used in logs, metrics and the journal
func (s Source) String() string {
	switch s {
	case SourceMappingOverride:
		return "mapping_override"
	case SourceDirectoryLookup:
		return "directory_lookup"
	default:
		return "unresolved"
	}
}

// ParseSource is the inverse of Source.String.
func ParseSource(s string) Source {
	switch s {
	case "mapping_override":
		return SourceMappingOverride
	case "directory_lookup":
		return SourceDirectoryLookup
	default:
		return SourceUnresolved
	}
}

// ResolutionResult is the outcome of remapping one raw principal
type ResolutionResult struct {
	Input     string
	Principal string // resolved principal, or Input unchanged when unresolved
	Found     bool
	Source    Source

	// Members holds the per-identity results when Input decomposed into several identities
	Members []ResolutionResult
}

// Unresolved returns the result for an input that is passed through unchanged.
func Unresolved(input string) ResolutionResult {
	return ResolutionResult{
		Input:     input,
		Principal: input,
		Source:    SourceUnresolved,
	}
}

// Resolved returns a found result.
func Resolved(input, output string, source Source) ResolutionResult {
	return ResolutionResult{
		Input:     input,
		Principal: output,
		Found:     true,
		Source:    source,
	}
}

// Combine aggregates member results for a compound input. The aggregate is only as strong
// as its weakest member: any unresolved member makes it unresolved, then directory lookups,
// then mapping overrides.
func Combine(input, output string, members []ResolutionResult) ResolutionResult {
	if len(members) == 1 {
		r := members[0]
		r.Input = input
		r.Principal = output
		return r
	}

	result := ResolutionResult{
		Input:     input,
		Principal: output,
		Members:   members,
	}
	if len(members) == 0 {
		result.Principal = input
		return result
	}

	result.Found = true
	result.Source = SourceMappingOverride
	for _, m := range members {
		if !m.Found {
			result.Found = false
			result.Source = SourceUnresolved
			return result
		}
		if m.Source == SourceDirectoryLookup {
			result.Source = SourceDirectoryLookup
		}
	}
	return result
}
