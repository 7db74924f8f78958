package cmd

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"marksweep/internal/app"
	"marksweep/internal/config"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "marksweep",
	Short: "Check, categorize and reorganize bookmarks",
	Long: `marksweep probes every bookmark for reachability, assigns each reachable one
a category (via an LLM when configured, by domain otherwise) and can move them
into per-category folders while removing broken links.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	// Builds the app once for every subcommand that needs it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipAppInit(cmd) {
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if debug {
			cfg.Log.Level = "debug"
		}
		configureLogging(cfg.Log.Level)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appInstance, err := GetAppFromContext(cmd.Context()); err == nil {
			appInstance.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type contextKey string

const appKey contextKey = "app"

// GetAppFromContext returns the app built in PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func skipAppInit(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "version", "completion", "config":
		return true
	}
	return cmd.Parent() != nil && cmd.Parent().Name() == "completion"
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfigFile(configPath)
	}
	return config.LoadConfig()
}

func configureLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default: ./config.yaml or ~/.config/marksweep/config.yaml)")

	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check store connectivity and classifier configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Checking %s store...\n", appInstance.Config.Store.Driver)
		if err := appInstance.Store.Ping(ctx); err != nil {
			return fmt.Errorf("store ping failed: %w", err)
		}
		fmt.Println(okMark + " Store connection successful.")

		settings := appInstance.Settings()
		switch {
		case !settings.EnableExternalClassification:
			fmt.Println(warnMark + " External classification disabled; categories come from the domain table.")
		case settings.APIKey == "":
			fmt.Println(failMark + " External classification enabled but no API key is configured.")
		default:
			fmt.Printf("%s Classifier: %s (%s)\n", okMark, settings.Provider, settings.ModelName)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration (API key redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Classifier.APIKey != "" {
			cfg.Classifier.APIKey = "********"
		}
		return printYAML(os.Stdout, cfg)
	},
}
