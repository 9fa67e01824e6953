package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dshills/r2md/internal/budget"
	"github.com/dshills/r2md/internal/collector"
	"github.com/dshills/r2md/internal/config"
	"github.com/dshills/r2md/internal/mcp"
	"github.com/dshills/r2md/internal/pipeline"
	"github.com/dshills/r2md/internal/render"
	"github.com/dshills/r2md/internal/storage"
	"github.com/dshills/r2md/pkg/types"
)

const (
	defaultOutput        = "r2md_output.md"
	defaultSamplesOutput = "training_samples.json"
)

var (
	errNoFiles    = errors.New("no recognized source files found")
	errNoDatabase = errors.New("no database: set --db or db_path")
)

// options holds the flag values of every command
type options struct {
	configPath  string
	debug       bool
	dbPath      string
	workers     int
	ignore      []string
	noGitignore bool
	allowCycles bool

	output      string
	html        bool
	maxContext  int
	chunkFences bool

	samplesOutput string
	ratio         float64
	tokenizer     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "r2md [paths...]",
		Short: "Export source repositories as dependency-ordered Markdown",
		Long: `r2md collects the source files of one or more directories, chunks them at
syntactic boundaries, orders them so every file follows the files it imports
and writes the result as Markdown. When stdout is not a terminal and no
output file is given, the Markdown is streamed to stdout.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runExport(cmd, cfg, opts, rootsOf(args))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default: r2md.yml, r2md.yaml or r2md.toml in the working directory)")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite database to save the run to")
	pf.IntVar(&opts.workers, "workers", 0, "concurrent workers (default: number of CPUs)")
	pf.StringSliceVar(&opts.ignore, "ignore", nil, "extra ignore patterns (substring or glob)")
	pf.BoolVar(&opts.noGitignore, "no-gitignore", false, "do not honor the root .gitignore")
	pf.BoolVar(&opts.allowCycles, "allow-cycles", false, "keep scan order instead of failing on an import cycle")

	f := root.Flags()
	f.StringVarP(&opts.output, "output", "o", defaultOutput, "Markdown output file")
	f.BoolVar(&opts.html, "html", false, "also write an HTML rendering next to the Markdown file")
	f.IntVar(&opts.maxContext, "max-context", 0, "split chunks longer than this many tokens (0 disables)")
	f.BoolVar(&opts.chunkFences, "chunk-fences", false, "write each chunk in its own code block")

	root.AddCommand(
		newOrderCmd(opts),
		newSamplesCmd(opts),
		newServeCmd(opts),
		newRunsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newOrderCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "order [paths...]",
		Short: "Print source files in dependency order",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			files, err := collectFiles(cmd.Context(), cfg, opts, rootsOf(args))
			if err != nil {
				return err
			}

			p, err := pipeline.New(pipelineConfig(cfg, opts))
			if err != nil {
				return err
			}
			order, err := p.Order(cmd.Context(), files)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, path := range order {
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}
}

func newSamplesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "samples [paths...]",
		Short: "Write prompt/completion training samples as JSON",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runSamples(cmd, cfg, opts, rootsOf(args))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.samplesOutput, "output", "o", defaultSamplesOutput, "JSON output file")
	f.Float64Var(&opts.ratio, "ratio", budget.DefaultSplitRatio, "share of each file's tokens that goes to the prompt")
	f.StringVar(&opts.tokenizer, "tokenizer", "", "vocabulary, e.g. cl100k_base, o200k_base or tiktoken-go:cl100k_base")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(cfg)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// Start server in a goroutine
			errChan := make(chan error, 1)
			go func() {
				log.Info().Str("version", version).Str("build", storage.BuildMode).Msg("MCP server ready, listening on stdio")
				errChan <- server.Serve(ctx)
			}()

			// Wait for shutdown signal or error
			select {
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}

func newRunsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List the runs saved in the database, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.DBPath == "" {
				return errNoDatabase
			}

			store, err := storage.NewSQLiteStorage(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(out, "%s\t%s\t%d files\t%d samples\t%s\n",
					r.ID, r.RootPath, r.TotalFiles, r.TotalSamples, r.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "r2md\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		},
	}
}

// load reads the config file, .env and environment, applies the flags that
// were set and configures logging
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.dbPath
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("max-context") {
		cfg.MaxContextTokens = o.maxContext
	}
	if flags.Changed("ratio") {
		cfg.SplitRatio = o.ratio
	}
	if flags.Changed("tokenizer") {
		cfg.Tokenizer = o.tokenizer
	}
	cfg.IgnorePatterns = append(cfg.IgnorePatterns, o.ignore...)
	if o.debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setupLogging(cmd.ErrOrStderr(), cfg)

	if cfg.Source != "" {
		log.Debug().Str("file", cfg.Source).Msg("config loaded")
	}
	return cfg, nil
}

// setupLogging points the global logger at w. Colors are used only on a
// terminal.
func setupLogging(w io.Writer, cfg *config.Config) {
	level, err := cfg.Level()
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(w),
	}).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func rootsOf(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

func pipelineConfig(cfg *config.Config, o *options) *pipeline.Config {
	return &pipeline.Config{
		Workers:          cfg.Workers,
		MaxContextTokens: cfg.MaxContextTokens,
		SplitRatio:       cfg.SplitRatio,
		Tokenizer:        cfg.Tokenizer,
		ParseTimeout:     cfg.ParseTimeout,
		AllowCycles:      o.allowCycles,
	}
}

func newCollector(cfg *config.Config, o *options) *collector.Collector {
	return collector.New(collector.Options{
		IgnorePatterns: cfg.IgnorePatterns,
		MaxFileSize:    cfg.MaxFileSize,
		NoGitignore:    o.noGitignore,
	})
}

func collectFiles(ctx context.Context, cfg *config.Config, o *options, roots []string) ([]types.FileEntry, error) {
	files, err := newCollector(cfg, o).Collect(ctx, roots...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoFiles, strings.Join(roots, ", "))
	}
	return files, nil
}

// runExport chunks and orders the roots, then streams the Markdown to stdout
// or writes it to the output file
func runExport(cmd *cobra.Command, cfg *config.Config, o *options, roots []string) error {
	ctx := cmd.Context()

	files, err := collectFiles(ctx, cfg, o, roots)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipelineConfig(cfg, o))
	if err != nil {
		return err
	}
	result, err := p.Run(ctx, files)
	if err != nil {
		return err
	}
	for _, msg := range result.Stats.ErrorMessages {
		log.Warn().Msg(msg)
	}

	if cfg.DBPath != "" && cmd.Flags().Changed("db") {
		exp := &storage.Export{
			Run: &storage.Run{
				RootPath:         runRoot(roots),
				Tokenizer:        p.Config().Tokenizer,
				MaxContextTokens: cfg.MaxContextTokens,
				SplitRatio:       p.Config().SplitRatio,
			},
			Files: result.Files,
			Edges: storage.EdgesFrom(result.Edges),
		}
		if err := saveExport(ctx, cfg.DBPath, exp); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if !cmd.Flags().Changed("output") && !isTerminal(out) {
		return render.Stream(out, result.Files)
	}

	c := newCollector(cfg, o)
	doc := render.Document{Files: result.Files}
	for _, root := range roots {
		tree, err := c.Tree(root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("no directory structure")
			continue
		}
		doc.Trees = append(doc.Trees, tree)
	}

	ropts := render.Options{ChunkFences: o.chunkFences}
	if err := render.WriteMarkdownFile(o.output, doc, ropts); err != nil {
		return err
	}
	if o.html {
		htmlPath := render.HTMLPath(o.output)
		if err := render.WriteHTMLFile(htmlPath, "Repository Markdown Export", doc, ropts); err != nil {
			return err
		}
		log.Info().Str("file", htmlPath).Msg("HTML written")
	}

	log.Info().
		Str("file", o.output).
		Int("files", result.Stats.FilesProcessed).
		Int("chunks", result.Stats.ChunksCreated).
		Dur("duration", result.Stats.Duration).
		Msg("Markdown written")
	return nil
}

// runSamples writes one training sample per file, in dependency order
func runSamples(cmd *cobra.Command, cfg *config.Config, o *options, roots []string) error {
	ctx := cmd.Context()

	// An invalid ratio fails before any file is read
	p, err := pipeline.New(pipelineConfig(cfg, o))
	if err != nil {
		return err
	}

	files, err := collectFiles(ctx, cfg, o, roots)
	if err != nil {
		return err
	}
	samples, stats, err := p.Samples(ctx, files)
	if err != nil {
		return err
	}

	if err := budget.WriteSamples(o.samplesOutput, samples); err != nil {
		return err
	}

	if cfg.DBPath != "" && cmd.Flags().Changed("db") {
		exp := &storage.Export{
			Run: &storage.Run{
				RootPath:   runRoot(roots),
				Tokenizer:  p.Config().Tokenizer,
				SplitRatio: p.Config().SplitRatio,
			},
			Samples: samples,
		}
		if err := saveExport(ctx, cfg.DBPath, exp); err != nil {
			return err
		}
	}

	log.Info().
		Str("file", o.samplesOutput).
		Int("files", stats.FilesProcessed).
		Int("samples", stats.Samples).
		Msg("samples written")
	return nil
}

func saveExport(ctx context.Context, dbPath string, exp *storage.Export) error {
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if err := storage.SaveExport(ctx, store, exp); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	log.Info().Str("db", dbPath).Str("run", exp.Run.ID).Msg("run saved")
	return nil
}

// runRoot names a run by its absolute roots
func runRoot(roots []string) string {
	abs := make([]string, len(roots))
	for i, r := range roots {
		if a, err := filepath.Abs(r); err == nil {
			r = a
		}
		abs[i] = r
	}
	return strings.Join(abs, string(os.PathListSeparator))
}
