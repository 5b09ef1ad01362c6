package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"spmigrate/application"
	"spmigrate/infrastructure/spclient"
	"spmigrate/logging"
	"spmigrate/spauth"
)

var (
	layoutSource string
	spTimeout    time.Duration
)

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "List the publishing page layouts of the source site",
	Long: `List the page layouts stored in the master page gallery of SP_SOURCE_URL.

Examples:
  spmigrate layouts
  spmigrate layouts --source ArticleLeft.aspx`,
	RunE: runLayouts,
}

var detectVersionCmd = &cobra.Command{
	Use:   "detect-version",
	Short: "Detect the SharePoint release of the source site",
	RunE:  runDetectVersion,
}

func init() {
	layoutsCmd.Flags().StringVar(&layoutSource, "source", "", "print the markup of the named layout")
	for _, c := range []*cobra.Command{layoutsCmd, detectVersionCmd} {
		c.Flags().DurationVar(&spTimeout, "timeout", 60*time.Second, "SharePoint request timeout")
	}
}

func newSharePointClient(cmd *cobra.Command) (*spclient.SharePointClientImpl, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	initializeLogging(cfg)

	authClient, err := spauth.NewClient(cfg.SharePoint)
	if err != nil {
		return nil, err
	}
	logging.Default().SharePoint("Connecting to source site",
		"site_url", cfg.SharePoint.SiteURL,
		"strategy", string(cfg.SharePoint.Strategy()))
	return spclient.NewSharePointClient(authClient, spTimeout), nil
}

func runLayouts(cmd *cobra.Command, _ []string) error {
	client, err := newSharePointClient(cmd)
	if err != nil {
		return err
	}
	svc := application.NewPageLayoutService(client)
	out := cmd.OutOrStdout()

	if layoutSource != "" {
		src, err := svc.GetLayoutSource(cmd.Context(), layoutSource)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, src)
		return err
	}

	inventory, err := svc.GetInventory(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTITLE\tCONTENT TYPE\tURL")
	for _, l := range inventory.Layouts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Name, l.Title, l.AssociatedContentType, l.ServerRelativeURL)
	}
	return tw.Flush()
}

func runDetectVersion(cmd *cobra.Command, _ []string) error {
	client, err := newSharePointClient(cmd)
	if err != nil {
		return err
	}

	version, err := client.DetectSourceVersion(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), version.String())
	return err
}
