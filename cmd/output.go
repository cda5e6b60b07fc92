package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	appconfig "github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/config"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/export"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/models"
	"github.com/d64483912-cmd/Harriet-lane-handbook-of-pediatrics/internal/services"
)

// writeOutputs 写出数据集、SQL 建表脚本与运行报告，返回写出的文件路径
func writeOutputs(cfg *appconfig.Config, result *services.Result, logger *logrus.Logger) ([]string, error) {
	dir := cfg.Output.Dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	base := export.BaseName(cfg.Pipeline.BookTitle)

	var files []string
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		if err := writeFile(path, fn); err != nil {
			return err
		}
		files = append(files, path)
		logger.WithField("file", path).Info("Output written")
		return nil
	}

	for _, format := range cfg.Output.Formats {
		var fn func(io.Writer, []models.Record) error
		switch format {
		case "csv":
			fn = export.WriteCSV
		case "json":
			fn = export.WriteJSON
		case "xlsx":
			fn = export.WriteXLSX
		default:
			return files, fmt.Errorf("unsupported output format: %s", format)
		}
		if err := write(base+"."+format, func(w io.Writer) error { return fn(w, result.Records) }); err != nil {
			return files, err
		}
	}

	schema := export.SchemaOptions{Dialect: cfg.Output.SchemaDialect, ChunkCount: cfg.Pipeline.ChunkCount}
	if err := write("schema.sql", func(w io.Writer) error { return export.WriteSchema(w, schema) }); err != nil {
		return files, err
	}

	if cfg.Output.Report {
		if err := write("report.json", func(w io.Writer) error { return export.WriteValue(w, result.Report) }); err != nil {
			return files, err
		}
	}
	return files, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// printReport 在终端打印运行摘要
func printReport(w io.Writer, report *services.Report, files []string) {
	title := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	title.Fprintf(w, "\n%s\n", report.BookTitle)
	fmt.Fprintf(w, "run id:     %s (%s)\n", report.RunID, report.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "chapters:   %d declared, %d processed\n", report.ChaptersDeclared, report.ChaptersProcessed)
	ok.Fprintf(w, "records:    %d\n", report.RecordsEmitted)
	fmt.Fprintf(w, "averages:   %.1f content words, %.1f summary chars\n", report.AvgContentWords, report.AvgSummaryChars)
	fmt.Fprintf(w, "extras:     %d micro-chunks, %d tables\n", report.MicroChunks, report.Tables)

	if len(report.Categories) > 0 {
		title.Fprintln(w, "\ncategories")
		labels := make([]string, 0, len(report.Categories))
		for label := range report.Categories {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(w, "  %-32s %d\n", label, report.Categories[label])
		}
	}

	if len(report.EmptyCategories) > 0 {
		warn.Fprintf(w, "\n%d categories have no records\n", len(report.EmptyCategories))
	}
	if report.EmptySummaries > 0 {
		warn.Fprintf(w, "\n%d records have an empty summary\n", report.EmptySummaries)
	}
	if report.EmbeddingError != "" {
		warn.Fprintf(w, "embeddings skipped: %s\n", report.EmbeddingError)
	}

	if len(report.Skipped) > 0 {
		bad.Fprintf(w, "\nskipped chapters (%d)\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Fprintf(w, "  %4d %-40s [%s] %s\n", s.ChapterNumber, s.ChapterName, s.Stage, s.Reason)
		}
	}
	if len(report.Rejected) > 0 {
		bad.Fprintf(w, "\nrejected records (%d)\n", len(report.Rejected))
		for _, r := range report.Rejected {
			fmt.Fprintf(w, "  chapter %d chunk %d: %s %s\n", r.ChapterNumber, r.ChunkIndex, r.Field, r.Reason)
		}
	}

	title.Fprintln(w, "\noutputs")
	for _, f := range files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	if report.Clean() {
		ok.Fprintln(w, "\nall chapters processed without issues")
	}
}
