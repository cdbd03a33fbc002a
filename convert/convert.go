// Package convert wires a MARC record source, the flattening engine,
// and an output sink into one conversion run.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bibutil/marctab/marc"
	"github.com/bibutil/marctab/output"
	"github.com/bibutil/marctab/schema"
	"github.com/bibutil/marctab/table"
	"github.com/google/uuid"
)

// Options configure a conversion run.
type Options struct {
	// Rules are the raw selection tokens; empty means the whole schema.
	Rules []string

	// Logger receives per-run structured logs; slog.Default when nil.
	Logger *slog.Logger
}

// Result summarizes a completed run.
type Result struct {
	// Records is the number of rows written.
	Records int

	// Skipped counts structurally damaged records that were dropped.
	Skipped int
}

// Run flattens every record from src into sink, in input order.
//
// Damaged records (those surfacing a *marc.RecordError) are skipped and
// logged, never silently repaired or partially emitted; this is the one
// record-level error policy of the pipeline. All other errors abort the
// run: rule and plan errors before any row is produced, source and sink
// errors as soon as they occur. Output flushed before an abort stays in
// place and the returned error is the caller's signal that it is
// incomplete.
func Run(ctx context.Context, sch *schema.Schema, src marc.Reader, sink output.Sink, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("run_id", uuid.NewString()))

	var res Result

	rules, err := table.ParseRules(opts.Rules, sch)
	if err != nil {
		return res, err
	}
	plan, err := table.Plan(sch, rules)
	if err != nil {
		return res, err
	}
	logger.Debug("column plan ready",
		slog.Int("columns", len(plan.Columns)),
		slog.Int("rules", len(rules)))

	if err := sink.Begin(plan); err != nil {
		return res, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var recErr *marc.RecordError
		if errors.As(err, &recErr) {
			res.Skipped++
			logger.Warn("skipping damaged record",
				slog.Int("record", recErr.Record),
				slog.String("error", recErr.Err.Error()))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("reading record source: %w", err)
		}

		if err := sink.Write(table.Flatten(rec, plan)); err != nil {
			return res, err
		}
		res.Records++
	}

	if err := sink.Close(); err != nil {
		return res, err
	}

	logger.Info("conversion complete",
		slog.Int("records", res.Records),
		slog.Int("skipped", res.Skipped))
	return res, nil
}
