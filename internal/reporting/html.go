package reporting

import (
	"html/template"
	"io"
	"path/filepath"
	"time"

	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"base": filepath.Base,
	"ms":   func(d time.Duration) int64 { return d.Milliseconds() },
	"ts":   func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>hrmcheck run {{.Run.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.passed { color: #2e7d32; }
.failed { color: #c62828; }
.skipped { color: #9e9e9e; }
</style>
</head>
<body>
<h1>hrmcheck</h1>
<p>Run <code>{{.Run.RunID}}</code> started {{ts .Run.StartedAt}} against {{.Meta.BaseURL}}</p>
{{if .Meta.CommandLine}}<p><code>{{.Meta.CommandLine}}</code></p>{{end}}
<p>
  <span class="passed">{{.Summary.Passed}} passed</span>,
  <span class="failed">{{.Summary.Failed}} failed</span>,
  <span class="skipped">{{.Summary.Skipped}} skipped</span>
  of {{.Summary.Total}} in {{ms .Run.Duration}} ms
</p>
<table>
<thead><tr><th>Scenario</th><th>Status</th><th>Duration (ms)</th><th>Message</th><th>Screenshot</th></tr></thead>
<tbody>
{{range .Run.Results}}<tr>
  <td>{{.ID}}</td>
  <td class="{{.StatusText}}">{{.StatusText}}</td>
  <td>{{ms .Duration}}</td>
  <td>{{.Message}}</td>
  <td>{{if .Screenshot}}<a href="{{.Screenshot}}">{{base .Screenshot}}</a>{{end}}</td>
</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

// HTMLReporter renders a self-contained HTML page.
type HTMLReporter struct {
	writer io.WriteCloser
	meta   Meta
}

func NewHTMLReporter(w io.WriteCloser, meta Meta) Reporter {
	return &HTMLReporter{writer: w, meta: meta}
}

func (r *HTMLReporter) Write(report *suite.RunReport) error {
	return htmlTemplate.Execute(r.writer, Document{Meta: r.meta, Summary: report.Summary(), Run: report})
}

func (r *HTMLReporter) Close() error {
	return r.writer.Close()
}
