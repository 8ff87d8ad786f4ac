// Package cli builds the esbench command line: workload phases, index
// provisioning, health checks and configuration inspection.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/nimburion/esbench/pkg/binding/elasticsearch"
	"github.com/nimburion/esbench/pkg/config"
	"github.com/nimburion/esbench/pkg/health"
	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/observability/metrics"
	"github.com/nimburion/esbench/pkg/observability/tracing"
	"github.com/nimburion/esbench/pkg/store"
	"github.com/nimburion/esbench/pkg/version"
	"github.com/nimburion/esbench/pkg/workload"
	"github.com/nimburion/esbench/pkg/ycsb"
)

// CreatorFactory builds the DB creator handed to the workload.
type CreatorFactory func(log logger.Logger) ycsb.Creator

// Options customise the root command.
type Options struct {
	Name        string
	Description string
	// EnvPrefix prefixes the environment variables bound to properties. Defaults to ESBENCH.
	EnvPrefix string
	// NewCreator overrides the DB under test. Defaults to the Elasticsearch binding.
	NewCreator CreatorFactory
	// ClientFactory overrides how healthcheck connects to the store.
	ClientFactory elasticsearch.ClientFactory
}

// flags holds the persistent flag values shared by every subcommand.
type flags struct {
	workloadFile string
	properties   []string
	threads      int
	target       float64
	metricsAddr  string
}

// session is the loaded configuration plus the logger built from it.
type session struct {
	cfg   *config.Config
	props ycsb.Properties
	log   logger.Logger
}

func (s *session) close() {
	if zl, ok := s.log.(*logger.ZapLogger); ok {
		_ = zl.Sync()
	}
}

// NewRootCommand creates the esbench command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = version.Name
	}
	if opts.Description == "" {
		opts.Description = "Benchmark Elasticsearch and OpenSearch with YCSB-style workloads"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	if opts.NewCreator == nil {
		opts.NewCreator = func(log logger.Logger) ycsb.Creator {
			return elasticsearch.NewCreator(elasticsearch.WithLogger(log))
		}
	}
	if opts.ClientFactory == nil {
		opts.ClientFactory = store.NewClient
	}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := &flags{}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.workloadFile, "workload", "P", "", "workload or property file (.properties, .yaml, .json)")
	pf.StringArrayVarP(&f.properties, "property", "p", nil, "property override as key=value (repeatable)")
	pf.IntVar(&f.threads, "threads", 1, "number of worker threads (threadcount)")
	pf.Float64Var(&f.target, "target", 0, "target operations per second, 0 for unthrottled (target)")

	rootCmd.AddCommand(
		newPhaseCommand(opts, f, workload.PhaseLoad),
		newPhaseCommand(opts, f, workload.PhaseRun),
		newInitCommand(opts, f),
		newHealthCommand(opts, f),
		newConfigCommand(opts, f),
		newVersionCommand(),
	)
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == string(workload.PhaseRun) || cmd.Name() == string(workload.PhaseLoad) {
			cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the phase runs")
		}
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = false
	rootCmd.InitDefaultCompletionCmd()
	return rootCmd
}

// Execute runs cmd and exits with status 1 on error.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// overrides collects -p assignments and the flags that map onto properties.
// Flags only win when set explicitly so that workload files keep their values.
func (f *flags) overrides(fs *pflag.FlagSet) (ycsb.Properties, error) {
	props, err := ycsb.ParseAssignments(f.properties)
	if err != nil {
		return nil, err
	}
	if fs.Changed("threads") {
		props[workload.KeyThreadCount] = fmt.Sprint(f.threads)
	}
	if fs.Changed("target") {
		props[workload.KeyTarget] = fmt.Sprint(f.target)
	}
	return props, nil
}

func (f *flags) loader(opts Options, fs *pflag.FlagSet) (*config.Loader, error) {
	overrides, err := f.overrides(fs)
	if err != nil {
		return nil, err
	}
	return config.NewLoader(f.workloadFile, opts.EnvPrefix).
		WithOverrides(overrides).
		WithEnvKeys(workload.KnownKeys()...), nil
}

// loadSession loads and validates the configuration and builds the logger.
func loadSession(cmd *cobra.Command, opts Options, f *flags) (*session, error) {
	loader, err := f.loader(opts, cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg, props, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(cfg.Observability.LogLevel),
		Format: logger.LogFormat(cfg.Observability.LogFormat),
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	if cfg.Observability.LogLevel == string(logger.DebugLevel) {
		log.Debug("effective configuration", "properties", config.RedactProperties(props))
	}
	return &session{cfg: cfg, props: props, log: log}, nil
}

func newPhaseCommand(opts Options, f *flags, phase workload.Phase) *cobra.Command {
	short := "Insert the initial record set"
	if phase == workload.PhaseRun {
		short = "Run the transaction phase against the loaded record set"
	}
	return &cobra.Command{
		Use:   string(phase),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, opts, f)
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var wopts []workload.Option
			wopts = append(wopts, workload.WithLogger(s.log))
			if f.metricsAddr != "" {
				reg := metrics.NewRegistry(true)
				shutdown, err := serveMetrics(f.metricsAddr, reg, s.log)
				if err != nil {
					return err
				}
				defer shutdown()
				wopts = append(wopts, workload.WithRegistry(reg))
			}

			w, err := workload.New(opts.NewCreator(s.log), s.props, wopts...)
			if err != nil {
				return err
			}

			tp, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
				ServiceName:    version.Name,
				ServiceVersion: version.Current().Version,
				RunID:          w.RunID(),
				Endpoint:       s.cfg.Observability.TracingEndpoint,
				SampleRate:     s.cfg.Observability.TracingSampleRate,
				Enabled:        s.cfg.Observability.TracingEnabled,
			})
			if err != nil {
				return fmt.Errorf("create tracer provider: %w", err)
			}
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					s.log.Warn("failed to shutdown tracer provider", "error", err)
				}
			}()

			var result *workload.Result
			if phase == workload.PhaseLoad {
				result, err = w.Load(ctx)
			} else {
				result, err = w.Run(ctx)
			}
			if result != nil {
				if reportErr := writeReport(cmd.OutOrStdout(), result); reportErr != nil {
					return errors.Join(err, reportErr)
				}
			}
			return err
		},
	}
}

// serveMetrics exposes reg on addr/metrics until the returned func is called.
func serveMetrics(addr string, reg *metrics.Registry, log logger.Logger) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on metrics address: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	log.Info("serving metrics", "address", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("failed to stop metrics server", "error", err)
		}
	}, nil
}

func newInitCommand(opts Options, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Provision the target index and wait for the cluster to turn green",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, opts, f)
			if err != nil {
				return err
			}
			defer s.close()

			adapter := elasticsearch.New(s.props,
				elasticsearch.WithLogger(s.log),
				elasticsearch.WithClientFactory(opts.ClientFactory),
			)
			if err := adapter.Init(cmd.Context()); err != nil {
				return err
			}
			if err := adapter.Cleanup(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %s ready\n", s.cfg.IndexKey)
			return nil
		},
	}
}

func newHealthCommand(opts Options, f *flags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity, cluster health and the target index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd, opts, f)
			if err != nil {
				return err
			}
			defer s.close()

			ctx := cmd.Context()
			client, err := opts.ClientFactory(ctx, s.cfg, s.log)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer func() {
				if err := client.Close(); err != nil {
					s.log.Warn("failed to close client", "error", err)
				}
			}()

			registry := health.NewRegistry()
			registry.Register(health.NewAdapterChecker("connection", client, timeout))
			registry.Register(health.NewClusterChecker("cluster", client, timeout))
			registry.Register(health.NewIndexChecker("index", s.cfg.IndexKey, client, timeout))

			result := registry.Check(ctx)
			out, err := yaml.Marshal(result)
			if err != nil {
				return fmt.Errorf("marshal health result: %w", err)
			}
			if _, err := cmd.OutOrStdout().Write(out); err != nil {
				return err
			}
			if result.Status == health.StatusUnhealthy {
				return errors.New("health check failed")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", health.DefaultTimeout, "timeout per check")
	return cmd
}

func newConfigCommand(opts Options, f *flags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management commands",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the merged configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := f.loader(opts, cmd.Flags())
			if err != nil {
				return err
			}
			_, props, err := loader.Load()
			if err != nil {
				return err
			}
			if _, err := workload.ConfigFromProperties(props); err != nil {
				return fmt.Errorf("invalid workload: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})

	var showSecrets bool
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the merged properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := f.loader(opts, cmd.Flags())
			if err != nil {
				return err
			}
			props, err := loader.LoadProperties()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !showSecrets {
				props = config.RedactProperties(props)
			}
			formatted, err := formatProperties(props)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatted)
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "show secret values")
	configCmd.AddCommand(showCmd)

	return configCmd
}

func formatProperties(props ycsb.Properties) (string, error) {
	if len(props) == 0 {
		return "{}\n", nil
	}
	data, err := yaml.Marshal(map[string]string(props))
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", info.Name)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
		},
	}
}
