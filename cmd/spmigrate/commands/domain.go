package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spmigrate/application"
)

var (
	domainCurrent bool
	domainTrusts  bool
)

var domainCmd = &cobra.Command{
	Use:   "domain [friendly-name...]",
	Short: "Resolve friendly domain names to LDAP connection strings",
	Long: `Resolve NetBIOS domain names (e.g. CONTOSO) to their DNS names and LDAP connection strings.

Examples:
  spmigrate domain CONTOSO ALPHADELTA
  spmigrate domain --current
  spmigrate domain --trusts`,
	RunE: runDomain,
}

func init() {
	domainCmd.Flags().BoolVar(&domainCurrent, "current", false, "print the domain this host is joined to")
	domainCmd.Flags().BoolVar(&domainTrusts, "trusts", false, "list the trusted domains")
}

func runDomain(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !domainCurrent && !domainTrusts {
		return fmt.Errorf("give a domain name, --current or --trusts")
	}

	a, err := newApp(cmd, appOptions{directory: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if domainCurrent {
		conn, err := a.domains.DefaultLdapConnectionString(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "current\t%s\t%s\n", application.ConnectionStringDomain(conn), conn)
	}

	if domainTrusts {
		trusts, err := a.domains.TrustedDomains(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "NETBIOS\tFQDN\tSID")
		for _, t := range trusts {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.FriendlyName, t.FQDN, t.SID)
		}
	}

	for _, name := range args {
		conn, err := a.domains.LdapConnectionStringForDomain(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, application.ConnectionStringDomain(conn), conn)
	}
	return nil
}
