package reporting

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the JSON report layout.
type Document struct {
	Meta    Meta             `json:"meta"`
	Summary suite.Summary    `json:"summary"`
	Run     *suite.RunReport `json:"run"`
}

// JSONReporter writes the run as an indented JSON document.
type JSONReporter struct {
	writer io.WriteCloser
	meta   Meta
}

func NewJSONReporter(w io.WriteCloser, meta Meta) Reporter {
	return &JSONReporter{writer: w, meta: meta}
}

func (r *JSONReporter) Write(report *suite.RunReport) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{Meta: r.meta, Summary: report.Summary(), Run: report})
}

func (r *JSONReporter) Close() error {
	return r.writer.Close()
}
