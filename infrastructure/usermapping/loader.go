package usermapping

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"spmigrate/domain/events"
	"spmigrate/domain/principal"
	"spmigrate/logging"
)

// headerNames are the header rows accepted on the first line of a mapping file.
var headerNames = [][2]string{
	{"sourceuser", "targetuser"},
	{"source", "target"},
}

// Loader reads user mapping files: one "source,target" pair per line.
type Loader struct {
	logger    *logging.Logger
	publisher events.ResolutionEventPublisher
}

// NewLoader creates a loader. publisher may be nil.
func NewLoader(publisher events.ResolutionEventPublisher) *Loader {
	return &Loader{
		logger:    logging.Default().WithComponent("user_mapping"),
		publisher: publisher,
	}
}

// Load reads the mapping file at path with a loader that only logs skipped rows.
func Load(path string) ([]principal.MappingEntry, error) {
	return NewLoader(nil).Load(path)
}

// Load reads every well-formed row of the mapping file at path. A missing file fails with
// principal.ErrFileNotFound; malformed rows are skipped with a warning.
func (l *Loader) Load(path string) ([]principal.MappingEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load user mapping %s: %w", path, errors.Join(principal.ErrFileNotFound, err))
		}
		return nil, fmt.Errorf("open user mapping %s: %w", path, err)
	}
	defer f.Close()

	start := time.Now()
	entries, err := l.Parse(f, path)
	if err != nil {
		return nil, err
	}

	l.logger.Mapping("User mapping file loaded",
		"path", path,
		"entries", len(entries),
		"duration_ms", time.Since(start).Milliseconds())
	return entries, nil
}

// LoadTable loads path and builds the lookup table from it.
func (l *Loader) LoadTable(path string) (*principal.MappingTable, error) {
	entries, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	table := principal.NewMappingTable(entries)
	if dups := len(entries) - table.Len(); dups > 0 {
		l.logger.Warn("User mapping file repeats sources, later rows win",
			"path", path,
			"duplicates", dups)
	}
	return table, nil
}

// maxLineBytes bounds a single mapping row
const maxLineBytes = 1 << 20

// Parse reads mapping rows from r. name identifies the source in diagnostics.
// Each physical line is parsed on its own, so a malformed row never swallows the rows after it.
func (l *Loader) Parse(r io.Reader, name string) ([]principal.MappingEntry, error) {
	// Excel saves CSV as UTF-8 with BOM or as UTF-16; BOMOverride picks the decoder
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var entries []principal.MappingEntry
	first := true
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		isFirst := first
		first = false

		record, err := parseRow(text)
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				l.skip(name, line, parseErr.Err.Error())
				continue
			}
			return nil, fmt.Errorf("read user mapping %s line %d: %w", name, line, err)
		}

		if len(record) < 2 {
			l.skip(name, line, "missing delimiter")
			continue
		}

		source := strings.TrimSpace(record[0])
		target := strings.TrimSpace(record[1])

		if isFirst && isHeader(source, target) {
			continue
		}
		if source == "" {
			l.skip(name, line, "empty source")
			continue
		}
		if target == "" {
			l.skip(name, line, "empty target")
			continue
		}

		entries = append(entries, principal.MappingEntry{Source: source, Target: target})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read user mapping %s: %w", name, err)
	}

	return entries, nil
}

func parseRow(text string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.Read()
}

func (l *Loader) skip(name string, line int, reason string) {
	rowErr := principal.ErrMappingRow{Line: line, Reason: reason}
	l.logger.Warn("Skipping user mapping row", "path", name, "line", line, "error", rowErr.Error())
	if l.publisher != nil {
		l.publisher.PublishMappingRowSkipped(events.MappingRowSkippedEvent{
			Path:      name,
			Line:      line,
			Reason:    reason,
			Timestamp: time.Now(),
		})
	}
}

func isHeader(source, target string) bool {
	s, t := strings.ToLower(source), strings.ToLower(target)
	for _, h := range headerNames {
		if s == h[0] && t == h[1] {
			return true
		}
	}
	return false
}
