package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/moamenhredeen/oascall/internal/invoke"
	"github.com/moamenhredeen/oascall/internal/registry"
	"github.com/moamenhredeen/oascall/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool

	log = logrus.New()

	isTTY = isatty.IsTerminal(os.Stdout.Fd())

	// Color helpers
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oascall",
	Short: "Call REST APIs described by an OpenAPI specification",
	Long: `oascall turns the operations of an OpenAPI specification into typed,
executable calls.

Operations are addressed by name. Each one gets an input schema built from its
parameters; inputs are validated before anything is sent and failures are
reported as one of a fixed set of error kinds.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func Execute() {
	cobra.OnInitialize(initConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	// Credentials may live in a local .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env file")
	}

	viper.SetEnvPrefix("OASCALL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("api_key_header", transport.DefaultAPIKeyHeader)
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("log_level", "warn")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func setupLogging() error {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := viper.GetString("log_level")
	if level == "" {
		level = "warn"
	}
	if verbose {
		level = "debug"
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)

	return nil
}

// loadRegistry loads the specification given on the command line
func loadRegistry(specFile string) (*registry.Registry, error) {
	reg := registry.New(registry.FromFile(specFile), registry.WithLogger(log))
	if err := reg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI file: %w", err)
	}
	return reg, nil
}

// newInvoker builds the transport from configuration. The server defaults to
// the first one declared by the specification.
func newInvoker(reg *registry.Registry) (*invoke.Invoker, error) {
	baseURL := viper.GetString("server")
	if baseURL == "" {
		if servers := reg.Servers(); len(servers) > 0 {
			baseURL = servers[0]
		}
	}
	if baseURL == "" {
		baseURL = "http://localhost"
	}

	opts := []transport.Option{
		transport.WithTimeout(viper.GetDuration("timeout")),
	}
	if key := viper.GetString("api_key"); key != "" {
		opts = append(opts, transport.WithAPIKey(viper.GetString("api_key_header"), key))
	}
	if bearer := viper.GetString("bearer"); bearer != "" {
		opts = append(opts, transport.WithBearer(bearer))
	}
	if username := viper.GetString("username"); username != "" {
		opts = append(opts, transport.WithBasicAuth(username, viper.GetString("password")))
	}

	client, err := transport.New(baseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: pass --server with an absolute URL", err)
	}

	log.WithField("server", client.URL).Debug("using server")

	return invoke.New(client, invoke.WithLogger(log)), nil
}

// addServerFlags registers the connection flags shared by invoke and batch
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "", "Override server URL from OpenAPI spec")
	cmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
}

func bindServerFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("server", cmd.Flags().Lookup("server"))
	_ = viper.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")
}
