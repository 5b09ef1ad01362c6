package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spmigrate/application"
	"spmigrate/domain/principal"
	"spmigrate/interfaces/web/presenters"
)

// ErrUnresolvedPrincipals is returned when FAIL_ON_UNRESOLVED is set and a run left principals unresolved
var ErrUnresolvedPrincipals = errors.New("unresolved principals")

var (
	resolveInput   string
	resolveWorkers int
	resolveOutput  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [principal...]",
	Short: "Resolve source principals to their SharePoint Online identities",
	Long: `Resolve one or more raw principals as they appear in source permissions.

Principals are read from the arguments, or one per line from --input ("-" for stdin).

Examples:
  # Resolve a Windows claim
  spmigrate resolve 'i:0#.w|contoso\jdoe'

  # Resolve a list with a mapping file, as JSON
  spmigrate resolve --mapping-file usermapping.csv --input principals.txt -o json`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveInput, "input", "i", "", "file with one principal per line, - for stdin")
	resolveCmd.Flags().IntVarP(&resolveWorkers, "workers", "w", application.DefaultRemapWorkers, "concurrent directory lookups")
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "table", "output format (table|json)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	principals := append([]string(nil), args...)
	if resolveInput != "" {
		lines, err := readPrincipals(cmd, resolveInput)
		if err != nil {
			return err
		}
		principals = append(principals, lines...)
	}
	if len(principals) == 0 {
		return fmt.Errorf("no principals given")
	}

	a, err := newApp(cmd, appOptions{journal: true, directory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, run, err := a.runs.StartRun(cmd.Context())
	if err != nil {
		return err
	}

	results, err := a.remapper.RemapAll(ctx, principals, resolveWorkers)
	if err != nil {
		return err
	}

	// The journal is written by event handlers; flush them before summarizing
	a.bus.Wait()
	if _, err := a.runs.CompleteRun(ctx, run.ID); err != nil {
		a.logger.Warn("Failed to complete run", "run_id", run.ID, "error", err)
	}
	a.metrics.LogRunMetrics(a.logger, run.ID)

	if err := writeResults(cmd.OutOrStdout(), resolveOutput, run.ID, results); err != nil {
		return err
	}

	if a.cfg.FailOnUnresolved {
		unresolved := 0
		for _, r := range results {
			if !r.Found {
				unresolved++
			}
		}
		if unresolved > 0 {
			return fmt.Errorf("%d of %d: %w", unresolved, len(results), ErrUnresolvedPrincipals)
		}
	}
	return nil
}

func readPrincipals(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var principals []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		principals = append(principals, line)
	}
	return principals, scanner.Err()
}

func writeResults(w io.Writer, format, runID string, results []principal.ResolutionResult) error {
	view := presenters.NewResolutionPresenter().ToResolutionListView(runID, results)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INPUT\tPRINCIPAL\tSOURCE")
		for _, r := range view.Results {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Input, r.Principal, r.Source)
		}
		fmt.Fprintf(tw, "\n%d of %d resolved (run %s)\n", view.Resolved, view.Total, runID)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
