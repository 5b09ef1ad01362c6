package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"spmigrate/application"
	"spmigrate/database"
	"spmigrate/domain/contracts"
	"spmigrate/domain/migration"
	"spmigrate/infrastructure/config"
	"spmigrate/infrastructure/directory"
	"spmigrate/infrastructure/metrics"
	"spmigrate/infrastructure/repositories"
	"spmigrate/infrastructure/usermapping"
	"spmigrate/logging"
	platformevents "spmigrate/platform/events"
)

// appOptions selects the parts of the dependency graph a command needs
type appOptions struct {
	journal   bool // open the journal database
	directory bool // connect the remapper to Active Directory
}

// app holds the dependencies of one command invocation
type app struct {
	cfg     *config.AppConfig
	logger  *logging.Logger
	metrics *metrics.ResolutionMetrics
	bus     *platformevents.ResolutionEventBus

	db        *database.Database
	journal   contracts.ResolutionJournalRepository
	directory *directory.LDAPDirectory

	domains  *application.DomainResolver
	remapper *application.PrincipalRemapper
	runs     *application.ResolutionRunService
}

func loadEnvironment() {
	if err := godotenv.Load(envFile); err != nil {
		logging.Debug("No .env file found, using environment variables", "path", envFile)
	} else {
		logging.Debug("Loaded configuration from .env file", "path", envFile)
	}
}

// loadConfig reads the environment and applies the flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	loadEnvironment()

	cfg, err := config.LoadAppConfigFromEnv()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mapping-file") {
		cfg.Transformation.UserMappingFile = mappingFile
	}
	if flags.Changed("skip-user-mapping") {
		cfg.Transformation.SkipUserMapping = skipUserMapping
	}
	if flags.Changed("source-version") {
		v, err := migration.ParseSourceVersion(sourceVersion)
		if err != nil {
			return nil, fmt.Errorf("--source-version: %w", err)
		}
		cfg.Transformation.SourceVersion = v
	}
	if flags.Changed("ldap") {
		cfg.Transformation.LDAPConnectionString = ldapConnection
		cfg.Directory.DefaultScope = ldapConnection
	}
	if flags.Changed("directory-timeout") {
		cfg.Transformation.DirectoryTimeout = directoryTimeout
	}
	if flags.Changed("db") {
		cfg.Database.Path = dbPath
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func initializeLogging(cfg *config.AppConfig) *logging.Logger {
	logger := logging.NewLogger(cfg.Logging)
	logging.SetDefault(logger)

	logger.Debug("spmigrate starting",
		"version", Version,
		"log_level", cfg.Logging.Level,
		"source_version", cfg.Transformation.SourceVersion.String(),
		"mapping_file", cfg.Transformation.UserMappingFile)
	return logger
}

// newApp builds the dependency graph of a command.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := initializeLogging(cfg)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewResolutionMetrics(),
		bus:     platformevents.NewResolutionEventBus(),
	}

	a.bus.Subscribe(a.metrics)
	platformevents.NewLogEventHandlers(logger).RegisterHandlers(a.bus)

	if opts.journal && !noJournal {
		a.db, err = database.New(*cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = repositories.NewSQLResolutionJournalRepository(a.db)
		platformevents.NewJournalEventHandlers(a.journal).RegisterHandlers(a.bus)
	}

	var dir contracts.DirectoryService
	if opts.directory && cfg.Transformation.LiveResolutionAllowed() {
		a.directory, err = directory.NewLDAPDirectory(cfg.Directory, a.metrics)
		if err != nil {
			a.Close()
			return nil, err
		}
		dir = a.directory
	}

	a.domains = application.NewDomainResolver(dir, cfg.Transformation)

	var search *application.PrincipalSearchService
	if dir != nil {
		search = application.NewPrincipalSearchService(dir, a.domains, cfg.Transformation)
	}

	a.remapper, err = application.NewPrincipalRemapperFromConfig(cfg.Transformation, usermapping.NewLoader(a.bus), search, a.bus)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runs = application.NewResolutionRunService(a.journal, cfg.Transformation)

	logger.Info("Principal remapper ready",
		"mapping_entries", a.remapper.MappingEntries(),
		"live_resolution", a.remapper.LiveResolutionEnabled(),
		"journal", a.journal != nil)
	return a, nil
}

// Close flushes pending events and releases connections.
func (a *app) Close() {
	a.bus.Wait()
	if a.directory != nil {
		if err := a.directory.Close(); err != nil {
			a.logger.Warn("Failed to close directory connections", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close journal", "error", err)
		}
	}
}
