// Package main provides the n10s CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/neo4j-labs/neosemantics-sub002/pkg/config"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/rdfimport"
	"github.com/neo4j-labs/neosemantics-sub002/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every command of one invocation.
type app struct {
	configPath string
	cfg        *config.Config
	log        *log.Logger
	metrics    *rdfimport.Metrics
	metricsSrv *http.Server
}

func newRootCmd() *cobra.Command {
	a := &app{log: log.StandardLogger()}

	rootCmd := &cobra.Command{
		Use:   "n10s",
		Short: "n10s - import RDF into a labeled property graph",
		Long: `n10s maps RDF documents (Turtle, N-Triples, N-Quads, TriG, RDF/XML,
JSON-LD, RDF-star) onto a labeled property graph store.

Resources become nodes identified by their uri property, rdf:type
statements become labels, literals become typed properties and
statements about statements become relationship properties.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", getEnvDefault("N10S_CONFIG", "n10s.yaml"), "YAML config file")
	flags.String("backend", "", "Store backend (badger or memory)")
	flags.String("data-dir", "", "Badger data directory")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text or json)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "n10s v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the Resource.uri unique constraint",
		RunE:  a.runInit,
	})

	rootCmd.AddCommand(a.graphConfigCmd())
	rootCmd.AddCommand(a.nsPrefixesCmd())
	rootCmd.AddCommand(a.mappingCmd())

	importCmd := &cobra.Command{
		Use:   "import <file|url|->",
		Short: "Import an RDF document into the store",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runImport,
	}
	addParserFlags(importCmd)
	importCmd.Flags().Bool("progress", true, "Show a progress bar over bytes read")
	rootCmd.AddCommand(importCmd)

	previewCmd := &cobra.Command{
		Use:   "preview <file|url|->",
		Short: "Map an RDF document to a virtual graph without writing it",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runPreview,
	}
	addParserFlags(previewCmd)
	rootCmd.AddCommand(previewCmd)

	validateCmd := &cobra.Command{
		Use:   "validate <file|url|->",
		Short: "Parse and map an RDF document, reporting counts and warnings",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runValidate,
	}
	addParserFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)

	streamCmd := &cobra.Command{
		Use:   "stream <file|url|->",
		Short: "Write the statements of an RDF document as N-Triples",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runStream,
	}
	addParserFlags(streamCmd)
	streamCmd.Flags().StringP("output", "o", "-", "Output file")
	rootCmd.AddCommand(streamCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the store as N-Triples or Neo4j JSON",
		RunE:  a.runExport,
	}
	exportCmd.Flags().String("format", "ntriples", "Export format (ntriples or neo4j-json)")
	exportCmd.Flags().StringP("output", "o", "-", "Output file")
	rootCmd.AddCommand(exportCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		RunE:  a.runStats,
	})

	return rootCmd
}

// setup loads the configuration, applies flag overrides and configures
// logging and the metrics endpoint.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnvOrFile(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("backend"); v != "" {
		cfg.Store.Backend = v
	}
	if v, _ := flags.GetString("data-dir"); v != "" {
		cfg.Store.DataDir = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	if v, _ := flags.GetString("metrics-addr"); v != "" {
		cfg.Metrics.Addr = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if err := configureLogging(a.log, cfg.Logging); err != nil {
		return err
	}
	a.log.SetOutput(cmd.ErrOrStderr())

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		if a.metrics, err = rdfimport.NewMetrics(reg); err != nil {
			return err
		}
		a.serveMetrics(reg)
	}
	return nil
}

func (a *app) teardown() error {
	if a.metricsSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.metricsSrv.Shutdown(ctx)
}

func configureLogging(l *log.Logger, c config.LoggingConfig) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	l.SetLevel(level)
	if strings.EqualFold(c.Format, "json") {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.metricsSrv = &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Metrics endpoint failed")
		}
	}()
	a.log.WithField("addr", a.cfg.Metrics.Addr).Info("Serving metrics")
}

// openStore opens the configured store. The caller closes it.
func (a *app) openStore() (storage.Engine, error) {
	switch a.cfg.Store.Backend {
	case config.BackendMemory:
		a.log.Warn("Using the memory backend: nothing outlives this command")
		return storage.NewMemoryEngine(), nil
	default:
		opts := storage.BadgerOptions{
			DataDir:    a.cfg.Store.DataDir,
			SyncWrites: a.cfg.Store.SyncWrites,
			LowMemory:  a.cfg.Store.LowMemory,
		}
		if a.log.IsLevelEnabled(log.DebugLevel) {
			opts.Logger = a.log
		}
		engine, err := storage.NewBadgerEngineWithOptions(opts)
		if err != nil {
			return nil, fmt.Errorf("opening store at %s: %w", a.cfg.Store.DataDir, err)
		}
		return engine, nil
	}
}

// withStore runs fn against an opened store and closes it afterwards.
func (a *app) withStore(fn func(engine storage.Engine) error) error {
	engine, err := a.openStore()
	if err != nil {
		return err
	}
	err = fn(engine)
	if cerr := engine.Close(); err == nil {
		err = cerr
	}
	return err
}

// compact syncs a badger store and reclaims value log space after an import.
func (a *app) compact(engine storage.Engine) error {
	b, ok := engine.(*storage.BadgerEngine)
	if !ok {
		return nil
	}
	if err := b.Sync(); err != nil {
		return fmt.Errorf("syncing store: %w", err)
	}
	if err := b.RunGC(); err != nil {
		a.log.WithError(err).Warn("Value log GC failed")
		return nil
	}
	a.log.Debug("Store synced")
	return nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
