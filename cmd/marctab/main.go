// Package main provides the marctab binary: it converts MARC
// bibliographic records (ISO 2709 or MARCXML) into CSV, Parquet, or
// JSON Lines tables driven by an Avram field schema.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bibutil/marctab/config"
	"github.com/bibutil/marctab/convert"
	"github.com/bibutil/marctab/marc"
	"github.com/bibutil/marctab/output"
	"github.com/bibutil/marctab/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const (
	version = "0.3.0"
	appName = "marctab"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	logger *slog.Logger

	schemaPath string
	logLevel   string
	rules      []string
	batch      int
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Convert MARC records to tabular formats",
		Long: `Marctab converts MARC bibliographic records into tables.

It reads ISO 2709 binary or MARCXML input and writes CSV, Parquet, or
JSON Lines, one row per record. Columns come from an Avram schema of
the MARC specification; --rule narrows the output to chosen fields and
subfields, e.g. 245, 245a, or 260ac.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setup()
		},
	}

	cmd.PersistentFlags().StringVar(&a.schemaPath, "schema", "", "Avram schema file (default: embedded LoC snapshot)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	for _, sub := range []struct {
		name  string
		short string
		sink  func(w io.Writer) output.Sink
	}{
		{"csv", "Convert MARC to CSV", func(w io.Writer) output.Sink { return output.NewCSVSink(w) }},
		{"jsonl", "Convert MARC to JSON Lines", func(w io.Writer) output.Sink { return output.NewJSONLSink(w) }},
		{"parquet", "Convert MARC to Parquet", func(w io.Writer) output.Sink { return output.NewParquetSink(w, a.batch) }},
	} {
		sub := sub
		c := &cobra.Command{
			Use:   sub.name + " [infile] [outfile]",
			Short: sub.short,
			Args:  cobra.MaximumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runConvert(cmd.Context(), args, sub.sink)
			},
		}
		c.Flags().StringArrayVarP(&a.rules, "rule", "r", nil, "Field rule for extracting, e.g. 245 or 245a or 245ac (repeatable)")
		c.Flags().IntVarP(&a.batch, "batch", "b", 0, "Batch n records when converting")
		cmd.AddCommand(c)
	}

	var crawlLimit int
	avram := &cobra.Command{
		Use:   "avram [outfile]",
		Short: "Regenerate the Avram schema by crawling the Library of Congress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAvram(cmd.Context(), args, crawlLimit)
		},
	}
	avram.Flags().IntVarP(&crawlLimit, "limit", "n", 0, "Stop after n fields (0 = all)")
	cmd.AddCommand(avram)

	cmd.AddCommand(&cobra.Command{
		Use:   "fields",
		Short: "Print the loaded field catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFields()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, version)
		},
	})

	return cmd
}

// setup resolves config and logging; flags override the config file.
func (a *app) setup() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, nil))
	a.cfg = config.Load(bootstrap)
	if a.schemaPath != "" {
		a.cfg.Schema = a.schemaPath
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}
	if a.batch <= 0 {
		a.batch = a.cfg.Batch
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: a.cfg.SlogLevel(),
	}))
	slog.SetDefault(a.logger)
}

func (a *app) loadSchema() (*schema.Schema, error) {
	if a.cfg.Schema != "" {
		return schema.LoadFile(a.cfg.Schema)
	}
	return schema.Default()
}

func (a *app) runConvert(ctx context.Context, args []string, newSink func(io.Writer) output.Sink) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sch, err := a.loadSchema()
	if err != nil {
		return err
	}

	inName, in, err := openInput(args)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openOutput(args)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = convert.Run(ctx, sch, marc.NewReaderFor(inName, in), newSink(out), convert.Options{
		Rules:  a.rules,
		Logger: a.logger,
	})
	return err
}

func (a *app) runAvram(ctx context.Context, args []string, limit int) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sch, err := schema.Crawl(ctx, schema.CrawlOptions{
		Limit: limit,
		Progress: func(f *schema.Field) {
			a.logger.Info("scraped field", slog.String("tag", f.Tag), slog.String("label", f.Label))
		},
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return sch.Save(out)
}

func (a *app) runFields() error {
	sch, err := a.loadSchema()
	if err != nil {
		return err
	}

	t := tablewriter.NewWriter(os.Stdout)
	t.SetHeader([]string{"Tag", "Label", "Repeatable", "Subfields"})
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	for _, tag := range sch.Tags() {
		f, _ := sch.Lookup(tag)
		codes := make([]byte, 0, len(f.Subfields))
		for _, sf := range f.Subfields {
			codes = append(codes, sf.Code[0])
		}
		t.Append([]string{f.Tag, f.Label, repeatMark(f.Repeatable), string(codes)})
	}
	t.Render()
	return nil
}

func repeatMark(r bool) string {
	if r {
		return "R"
	}
	return "NR"
}

// openInput resolves the first positional argument; "-" or no argument
// reads stdin.
func openInput(args []string) (string, io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return "-", io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return "", nil, err
	}
	return args[0], f, nil
}

// openOutput resolves the second positional argument; "-" or no
// argument writes stdout.
func openOutput(args []string) (io.WriteCloser, error) {
	if len(args) < 2 || args[1] == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(args[1])
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
