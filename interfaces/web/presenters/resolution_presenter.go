package presenters

import (
	"time"

	"spmigrate/domain/journal"
	"spmigrate/domain/principal"
)

// ResolutionView is the API shape of one remap outcome
type ResolutionView struct {
	Input     string            `json:"input"`
	Principal string            `json:"principal"`
	Found     bool              `json:"found"`
	Source    string            `json:"source"`
	Members   []*ResolutionView `json:"members,omitempty"`
}

// ResolutionListView wraps the outcomes of one request
type ResolutionListView struct {
	RunID    string            `json:"run_id,omitempty"`
	Results  []*ResolutionView `json:"results"`
	Resolved int               `json:"resolved"`
	Total    int               `json:"total"`
}

// DomainView is the API shape of a resolved friendly domain
type DomainView struct {
	Name             string `json:"name"`
	FQDN             string `json:"fqdn"`
	ConnectionString string `json:"connection_string"`
}

// JournalEntryView is the API shape of an unresolved journal entry
type JournalEntryView struct {
	Input      string `json:"input"`
	Output     string `json:"output"`
	Error      string `json:"error,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

// RunReportView lists what a run left unresolved
type RunReportView struct {
	RunID           string              `json:"run_id"`
	StartedAt       string              `json:"started_at"`
	CompletedAt     string              `json:"completed_at,omitempty"`
	Total           int                 `json:"total"`
	Mapped          int                 `json:"mapped"`
	Directory       int                 `json:"directory"`
	Unresolved      int                 `json:"unresolved"`
	Failed          int                 `json:"failed"`
	ResolvedPercent float64             `json:"resolved_percent"`
	Entries         []*JournalEntryView `json:"entries"`
}

// ErrorView is the body of every error response
type ErrorView struct {
	Error string `json:"error"`
}

// ResolutionPresenter converts resolution results and journal data to view models
type ResolutionPresenter struct{}

// NewResolutionPresenter creates a new resolution presenter
func NewResolutionPresenter() *ResolutionPresenter {
	return &ResolutionPresenter{}
}

// ToResolutionView converts a result, members included
func (p *ResolutionPresenter) ToResolutionView(r principal.ResolutionResult) *ResolutionView {
	view := &ResolutionView{
		Input:     r.Input,
		Principal: r.Principal,
		Found:     r.Found,
		Source:    r.Source.String(),
	}
	for _, m := range r.Members {
		view.Members = append(view.Members, p.ToResolutionView(m))
	}
	return view
}

// ToResolutionListView converts the results of a batch
func (p *ResolutionPresenter) ToResolutionListView(runID string, results []principal.ResolutionResult) *ResolutionListView {
	view := &ResolutionListView{
		RunID:   runID,
		Results: make([]*ResolutionView, 0, len(results)),
		Total:   len(results),
	}
	for _, r := range results {
		if r.Found {
			view.Resolved++
		}
		view.Results = append(view.Results, p.ToResolutionView(r))
	}
	return view
}

// ToRunReportView combines a run summary with its unresolved entries
func (p *ResolutionPresenter) ToRunReportView(summary *journal.RunSummary, entries []*journal.Entry) *RunReportView {
	view := &RunReportView{
		RunID:           summary.Run.ID,
		StartedAt:       formatTime(summary.Run.StartedAt),
		Total:           summary.Total,
		Mapped:          summary.Mapped,
		Directory:       summary.Directory,
		Unresolved:      summary.Unresolved,
		Failed:          summary.Failed,
		ResolvedPercent: summary.ResolvedPercent(),
		Entries:         make([]*JournalEntryView, 0, len(entries)),
	}
	if summary.Run.CompletedAt != nil {
		view.CompletedAt = formatTime(*summary.Run.CompletedAt)
	}
	for _, e := range entries {
		view.Entries = append(view.Entries, &JournalEntryView{
			Input:      e.Input,
			Output:     e.Output,
			Error:      e.Error,
			RecordedAt: formatTime(e.RecordedAt),
		})
	}
	return view
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
