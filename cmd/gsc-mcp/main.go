package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/stellarlinkco/gsc-mcp/internal/config"
	"github.com/stellarlinkco/gsc-mcp/internal/gateway"
	"github.com/stellarlinkco/gsc-mcp/internal/logging"
	"github.com/stellarlinkco/gsc-mcp/internal/searchconsole"
	"github.com/stellarlinkco/gsc-mcp/internal/telemetry"
	"github.com/stellarlinkco/gsc-mcp/internal/tools"
)

const shutdownTimeout = 5 * time.Second

// ConnectorFactory builds the Search Console connector from loaded credentials.
type ConnectorFactory func(cfg *config.Config, creds *searchconsole.Credentials) searchconsole.Connector

// DefaultConnectorFactory talks to the Google APIs.
func DefaultConnectorFactory(cfg *config.Config, creds *searchconsole.Credentials) searchconsole.Connector {
	ua := cfg.API.UserAgent
	if ua == "" {
		ua = config.DefaultServiceName + "/" + cfg.Server.Version
	}
	return &searchconsole.GoogleConnector{Credentials: creds, UserAgent: ua}
}

// AppOptions injects dependencies for testing
type AppOptions struct {
	ConnectorFactory ConnectorFactory
	Transport        mcp.Transport
	SignalChan       chan os.Signal
	Stdout           io.Writer
	Stderr           io.Writer
}

func (o AppOptions) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

func (o AppOptions) stderr() io.Writer {
	if o.Stderr == nil {
		return os.Stderr
	}
	return o.Stderr
}

var rootCmd = &cobra.Command{
	Use:          "gsc-mcp",
	Short:        "gsc-mcp - Google Search Console tools over MCP",
	Version:      config.DefaultServerVersion,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Serve the Search Console tools over MCP on stdio (default)",
	SilenceUsage: true,
	RunE:         runServe,
}

var callCmd = &cobra.Command{
	Use:          "call <tool>",
	Short:        "Invoke one tool and print its JSON result",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCall,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	RunE:  runTools,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create the default config file",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gsc-mcp status",
	RunE:  runStatus,
}

var argsFlag string

func init() {
	callCmd.Flags().StringVarP(&argsFlag, "args", "a", "", "Tool arguments as a JSON object")
	rootCmd.AddCommand(serveCmd, callCmd, toolsCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	return runServeWithOptions(cmd.Context(), AppOptions{})
}

// app is the wired service stack shared by serve and call.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *tools.Registry
	shutdown telemetry.ShutdownFunc
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// newApp loads config and credentials and builds the tool registry. Missing
// credentials fail before anything else is touched.
func newApp(ctx context.Context, opts AppOptions) (*app, error) {
	if config.CredentialsFromEnv().KeyFile == "" {
		return nil, config.ErrMissingCredentials
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	logger := logging.New(opts.stderr(), cfg.Log)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.Server.Version)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, shutdown: shutdown}

	creds, err := searchconsole.LoadCredentials(cfg.Credentials.KeyFile, cfg.Credentials.Subject, searchconsole.Scopes(cfg.API.AllowWrites)...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load credentials from %s: %w", cfg.Credentials.Source, err)
	}

	observer, err := telemetry.NewGlobalCallObserver()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create call observer: %w", err)
	}

	factory := opts.ConnectorFactory
	if factory == nil {
		factory = DefaultConnectorFactory
	}
	svc, err := searchconsole.NewService(factory(cfg, creds), searchconsole.Options{
		Logger:   logging.Component(logger, "searchconsole"),
		Observer: observer,
		Timeout:  cfg.API.Timeout.Duration,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create search console service: %w", err)
	}

	a.registry, err = tools.NewCatalog(svc, tools.CatalogOptions{AllowWrites: cfg.API.AllowWrites})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}

	logger.Info("credentials loaded",
		"source", cfg.Credentials.Source,
		"client_email", creds.ClientEmail,
		"subject", creds.Subject,
		"allow_writes", cfg.API.AllowWrites,
	)
	return a, nil
}

// runServeWithOptions runs the MCP server with injectable dependencies for testing
func runServeWithOptions(ctx context.Context, opts AppOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	gw, err := gateway.NewWithOptions(a.cfg, a.registry, gateway.Options{
		Transport:  opts.Transport,
		SignalChan: opts.SignalChan,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(ctx)
}

func runCall(cmd *cobra.Command, args []string) error {
	return runCallWithOptions(cmd.Context(), args[0], argsFlag, AppOptions{})
}

func runCallWithOptions(ctx context.Context, name, rawArgs string, opts AppOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	var raw json.RawMessage
	if strings.TrimSpace(rawArgs) != "" {
		raw = json.RawMessage(rawArgs)
	}
	text, err := a.registry.Call(ctx, name, raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(opts.stdout(), text)
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	return printTools(AppOptions{})
}

func printTools(opts AppOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Listing never calls the service.
	reg, err := tools.NewCatalog(nil, tools.CatalogOptions{AllowWrites: cfg.API.AllowWrites})
	if err != nil {
		return err
	}
	out := opts.stdout()
	for _, t := range reg.Tools() {
		fmt.Fprintf(out, "%-18s %s\n", t.Name, t.Description)
	}
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	return onboard(AppOptions{})
}

func onboard(opts AppOptions) error {
	out := opts.stdout()
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else if err != nil {
		return fmt.Errorf("stat config: %w", err)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Set %s to the path of a service-account key file\n", config.CredentialsEnv)
	fmt.Fprintf(out, "  2. Optionally set %s to impersonate a user\n", config.SubjectEnv)
	fmt.Fprintln(out, "  3. Run 'gsc-mcp call list_sites' to test")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	return status(AppOptions{})
}

func status(opts AppOptions) error {
	out := opts.stdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Server: %s %s\n", cfg.Server.Name, cfg.Server.Version)
	if cfg.Credentials.KeyFile == "" {
		fmt.Fprintf(out, "Credentials: not set (set %s)\n", config.CredentialsEnv)
	} else {
		fmt.Fprintf(out, "Credentials: %s (from %s)\n", cfg.Credentials.KeyFile, cfg.Credentials.Source)
		creds, err := searchconsole.LoadCredentials(cfg.Credentials.KeyFile, cfg.Credentials.Subject, searchconsole.Scopes(cfg.API.AllowWrites)...)
		if err != nil {
			fmt.Fprintf(out, "Service account: error (%v)\n", err)
		} else {
			fmt.Fprintf(out, "Service account: %s\n", creds.ClientEmail)
		}
	}
	if cfg.Credentials.Subject != "" {
		fmt.Fprintf(out, "Subject: %s\n", cfg.Credentials.Subject)
	} else {
		fmt.Fprintln(out, "Subject: none")
	}
	fmt.Fprintf(out, "Writes: allowed=%v\n", cfg.API.AllowWrites)
	fmt.Fprintf(out, "API timeout: %s\n", cfg.API.Timeout.Duration)
	fmt.Fprintf(out, "Telemetry: enabled=%v endpoint=%s\n", cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint)
	return nil
}
