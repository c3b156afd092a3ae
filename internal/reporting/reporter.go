// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alessio/shellescape"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

// Supported report formats.
const (
	FormatHTML  = "html"
	FormatJUnit = "junit"
	FormatJSON  = "json"
)

// Meta describes the invocation that produced a report.
type Meta struct {
	ToolVersion string `json:"tool_version"`
	BaseURL     string `json:"base_url"`
	CommandLine string `json:"command_line"`
}

// CommandLine quotes args so the recorded command can be pasted into a shell.
func CommandLine(args []string) string {
	return shellescape.QuoteCommand(args)
}

// Reporter writes a finished run to an output.
type Reporter interface {
	// Write renders the report.
	Write(report *suite.RunReport) error
	// Close finalizes the output and releases any file handle.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath ("" or "stdout" for
// standard output).
func New(format, outputPath string, meta Meta) (Reporter, error) {
	var newFn func(io.WriteCloser, Meta) Reporter
	switch format {
	case FormatHTML:
		newFn = NewHTMLReporter
	case FormatJUnit:
		newFn = NewJUnitReporter
	case FormatJSON:
		newFn = NewJSONReporter
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return newFn(writer, meta), nil
}

// FileName is the conventional report file name for format.
func FileName(format string) string {
	switch format {
	case FormatHTML:
		return "report.html"
	case FormatJUnit:
		return "junit.xml"
	case FormatJSON:
		return "report.json"
	default:
		return "report." + format
	}
}

// WriteAll renders report in every format into dir and returns the written
// paths in format order. It stops at the first failure.
func WriteAll(report *suite.RunReport, dir string, formats []string, meta Meta) ([]string, error) {
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand report directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path := filepath.Join(dir, FileName(format))
		r, err := New(format, path, meta)
		if err != nil {
			return paths, err
		}
		if err := r.Write(report); err != nil {
			_ = r.Close()
			return paths, fmt.Errorf("failed to write %s report: %w", format, err)
		}
		if err := r.Close(); err != nil {
			return paths, fmt.Errorf("failed to close %s report: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
