package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tordrt/catalogsync"
	"github.com/tordrt/catalogsync/internal/config"
	"github.com/tordrt/catalogsync/internal/db"
	"github.com/tordrt/catalogsync/internal/diff"
	"github.com/tordrt/catalogsync/internal/formatter"
	"github.com/tordrt/catalogsync/internal/metrics"
	"github.com/tordrt/catalogsync/internal/store"
)

var (
	configPath         string
	dbURL              string
	outputFile         string
	outputDir          string
	format             string
	verbose            bool
	confirmDestructive bool
	metricsFile        string
	showSchema         bool
	assumeYes          bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "catalogsync",
		Short:         "Synchronize catalog definitions with a PostgreSQL tenant schema",
		Long:          `catalogsync materializes user-defined catalogs as tables in a per-tenant PostgreSQL schema and migrates them as the definitions change. Additive changes are applied directly; destructive changes need explicit confirmation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "catalogsync.yaml", "Config file with tenant and catalog definitions")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection string (overrides config and "+config.DatabaseURLEnv+")")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", formatter.FormatText, "Output format: text or markdown")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the changes the next apply would make",
		RunE:  runPlan,
	}

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or migrate the tenant schema",
		RunE:  runApply,
	}
	applyCmd.Flags().BoolVar(&confirmDestructive, "confirm-destructive", false, "Apply destructive changes (dropped tables and columns, type changes, tightened constraints)")
	applyCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write prometheus metrics to this file (textfile collector format)")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Compare the live schema with the last synced snapshot",
		RunE:  runInspect,
	}
	inspectCmd.Flags().BoolVar(&showSchema, "show-schema", false, "Also print the live schema")
	inspectCmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Write snapshot documentation to a directory (one file per table)")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the publication status of the tenant",
		RunE:  runStatus,
	}

	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the tenant schema and reset its publication",
		RunE:  runDrop,
	}
	dropCmd.Flags().BoolVar(&assumeYes, "yes", false, "Confirm dropping the schema and all its data")

	rootCmd.AddCommand(planCmd, applyCmd, inspectCmd, statusCmd, dropCmd)
	return rootCmd
}

// env holds what a subcommand needs; close releases it
type env struct {
	cfg          *config.Config
	logger       *slog.Logger
	pg           *db.PostgresClient
	publications store.PublicationStore
	closers      []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// setup loads the config and opens the connections a subcommand asks for
func setup(ctx context.Context, cmd *cobra.Command, needPostgres bool) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	e := &env{cfg: cfg, logger: newLogger(cmd.ErrOrStderr(), verbose)}

	if needPostgres || cfg.Store.Driver == config.StorePostgres {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("a database url is required (--db-url, databaseUrl or %s)", config.DatabaseURLEnv)
		}
		pg, err := db.NewPostgresClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		e.pg = pg
		e.closers = append(e.closers, pg.Close)
	}

	publications, closeStore, err := openStore(ctx, cfg, e.pg)
	if err != nil {
		e.close()
		return nil, err
	}
	e.publications = publications
	e.closers = append(e.closers, closeStore)
	return e, nil
}

func openStore(ctx context.Context, cfg *config.Config, pg *db.PostgresClient) (store.PublicationStore, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		s, err := store.NewPostgresPublicationStore(ctx, pg)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		client, err := db.NewSQLiteClient(ctx, cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open publication store: %w", err)
		}
		s, err := store.NewSQLitePublicationStore(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, func() {
			if err := client.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close publication store: %v\n", err)
			}
		}, nil
	}
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openOutput returns the writer for --output and a function closing it
func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	if outputFile == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
		}
	}, nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.close()

	var snapshot *catalogsync.Snapshot
	p, err := e.publications.Get(ctx, e.cfg.TenantID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	default:
		snapshot = p.Snapshot
	}

	w, closeOutput, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOutput()

	f, err := formatter.New(w, format)
	if err != nil {
		return err
	}
	return f.FormatDiff(diff.CalculateDiff(snapshot, e.cfg.Catalogs))
}

func runApply(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	collector := metrics.New(e.cfg.Metrics.Namespace)
	sync := catalogsync.NewSynchronizer(e.pg, db.NewPostgresLock(e.pg), e.publications, &catalogsync.Options{
		Logger:  e.logger,
		Metrics: collector,
	})

	result, err := sync.Sync(ctx, e.cfg.TenantID, e.cfg.Catalogs, confirmDestructive)
	if err != nil {
		return err
	}

	textfile := metricsFile
	if textfile == "" {
		textfile = e.cfg.Metrics.Textfile
	}
	if textfile != "" {
		if err := collector.WriteTextfile(textfile); err != nil {
			e.logger.Warn("failed to write metrics", "error", err)
		}
	}

	if result.Snapshot != nil && e.cfg.SnapshotPath != "" {
		if err := writeSnapshot(e.cfg.SnapshotPath, result.Snapshot); err != nil {
			return err
		}
	}

	w, closeOutput, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOutput()

	if err := printResult(w, result); err != nil {
		return err
	}

	switch result.Status {
	case catalogsync.StatusOutdated:
		return fmt.Errorf("%d destructive change(s) need --confirm-destructive", len(result.Diff.Destructive))
	case catalogsync.StatusError:
		return fmt.Errorf("sync of %s failed with %d error(s)", result.SchemaName, len(result.Errors))
	}
	return nil
}

func printResult(w io.Writer, result *catalogsync.SyncResult) error {
	if result.Diff != nil {
		f, err := formatter.New(w, format)
		if err != nil {
			return err
		}
		if err := f.FormatDiff(result.Diff); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w)
	}
	if result.Generation != nil {
		_, _ = fmt.Fprintf(w, "GENERATED: %d table(s) in %s\n", len(result.Generation.TablesCreated), result.SchemaName)
	}
	_, _ = fmt.Fprintf(w, "STATUS: %s\n", result.Status)
	for _, msg := range result.Errors {
		_, _ = fmt.Fprintf(w, "  ERROR: %s\n", msg)
	}
	return nil
}

func writeSnapshot(path string, s *catalogsync.Snapshot) error {
	data, err := s.MarshalIndent()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func runInspect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.publications.Get(ctx, e.cfg.TenantID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && p.Snapshot == nil) {
		return fmt.Errorf("tenant %s has not been synced yet", e.cfg.TenantID)
	}
	if err != nil {
		return err
	}

	schemaName := catalogsync.SchemaName(e.cfg.TenantID)
	live, err := db.NewExtractor(e.pg, schemaName).ExtractSchema(ctx)
	if err != nil {
		return fmt.Errorf("failed to extract schema: %w", err)
	}

	if outputDir != "" {
		if err := formatter.NewMultiFileFormatter(outputDir, format).Format(p.Snapshot); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	}

	w, closeOutput, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOutput()

	f, err := formatter.New(w, format)
	if err != nil {
		return err
	}
	if showSchema {
		if err := f.FormatSchema(live); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, _ = fmt.Fprintln(w)
	}
	return f.FormatDrift(diff.DetectDrift(p.Snapshot, live))
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := setup(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.publications.Get(ctx, e.cfg.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		p = &store.Publication{TenantID: e.cfg.TenantID, Status: store.StatusDraft}
	} else if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "TENANT %s (schema %s)\n", p.TenantID, catalogsync.SchemaName(p.TenantID))
	_, _ = fmt.Fprintf(w, "  status: %s\n", p.Status)
	if !p.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "  updated: %s\n", p.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if p.Snapshot != nil {
		_, _ = fmt.Fprintf(w, "  tables: %d\n", len(p.Snapshot.Catalogs))
	}
	if len(p.Errors) > 0 {
		_, _ = fmt.Fprintf(w, "  errors:\n    %s\n", strings.Join(p.Errors, "\n    "))
	}
	return nil
}

func runDrop(cmd *cobra.Command, _ []string) error {
	if !assumeYes {
		return fmt.Errorf("dropping a schema deletes all its data; pass --yes to confirm")
	}

	ctx := cmd.Context()
	e, err := setup(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer e.close()

	sync := catalogsync.NewSynchronizer(e.pg, db.NewPostgresLock(e.pg), e.publications, &catalogsync.Options{Logger: e.logger})
	if err := sync.Drop(ctx, e.cfg.TenantID); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", catalogsync.SchemaName(e.cfg.TenantID))
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
