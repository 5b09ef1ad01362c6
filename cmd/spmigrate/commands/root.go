// Package commands implements the spmigrate command line.
package commands

import (
	"time"

	"github.com/spf13/cobra"
)

// Version is injected at build time.
var Version = "dev"

// Global flags. Each one overrides its environment variable when set.
var (
	envFile          string
	mappingFile      string
	skipUserMapping  bool
	sourceVersion    string
	ldapConnection   string
	directoryTimeout time.Duration
	dbPath           string
	noJournal        bool
	logLevel         string
	logFormat        string
)

var rootCmd = &cobra.Command{
	Use:   "spmigrate",
	Short: "Resolve SharePoint on-premises principals for SharePoint Online",
	Long: `spmigrate maps the users and groups referenced by an on-premises SharePoint farm
to their SharePoint Online identities. Overrides come from a user mapping file;
anything else is looked up in Active Directory.

Configuration is read from the environment (and a .env file), flags take precedence.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&mappingFile, "mapping-file", "", "user mapping CSV (USER_MAPPING_FILE)")
	flags.BoolVar(&skipUserMapping, "skip-user-mapping", false, "pass principals through untouched (SKIP_USER_MAPPING)")
	flags.StringVar(&sourceVersion, "source-version", "", "SP2010|SP2013|SP2016|SP2019|SPO (SP_SOURCE_VERSION)")
	flags.StringVar(&ldapConnection, "ldap", "", "LDAP://<fqdn> overriding the joined domain (LDAP_CONNECTION_STRING)")
	flags.DurationVar(&directoryTimeout, "directory-timeout", 0, "timeout of one directory query (DIRECTORY_TIMEOUT)")
	flags.StringVar(&dbPath, "db", "", "resolution journal database (DB_PATH)")
	flags.BoolVar(&noJournal, "no-journal", false, "do not record resolutions in the journal database")
	flags.StringVar(&logLevel, "log-level", "", "debug|info|warn|error (LOG_LEVEL)")
	flags.StringVar(&logFormat, "log-format", "", "json|text (LOG_FORMAT)")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(domainCmd)
	rootCmd.AddCommand(layoutsCmd)
	rootCmd.AddCommand(detectVersionCmd)
	rootCmd.AddCommand(serveCmd)
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
