package reporting

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

// JUnitReporter renders a run as JUnit XML, one testsuite per scenario group.
type JUnitReporter struct {
	writer io.WriteCloser
	meta   Meta
}

func NewJUnitReporter(w io.WriteCloser, meta Meta) Reporter {
	return &JUnitReporter{writer: w, meta: meta}
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func (r *JUnitReporter) Write(report *suite.RunReport) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	sum := report.Summary()
	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "hrmcheck")
	root.CreateAttr("tests", strconv.Itoa(sum.Total))
	root.CreateAttr("failures", strconv.Itoa(sum.Failed))
	root.CreateAttr("skipped", strconv.Itoa(sum.Skipped))
	root.CreateAttr("time", seconds(report.Duration()))

	suites := make(map[suite.Group]*etree.Element)
	counts := make(map[suite.Group]*suite.Summary)
	for _, res := range report.Results {
		ts, ok := suites[res.Group]
		if !ok {
			ts = root.CreateElement("testsuite")
			ts.CreateAttr("name", string(res.Group))
			ts.CreateAttr("timestamp", report.StartedAt.UTC().Format(time.RFC3339))
			props := ts.CreateElement("properties")
			addProperty(props, "run_id", report.RunID)
			addProperty(props, "base_url", r.meta.BaseURL)
			addProperty(props, "command_line", r.meta.CommandLine)
			suites[res.Group] = ts
			counts[res.Group] = &suite.Summary{}
		}
		c := counts[res.Group]
		c.Total++

		tc := ts.CreateElement("testcase")
		tc.CreateAttr("classname", string(res.Group))
		tc.CreateAttr("name", res.Name)
		tc.CreateAttr("time", seconds(res.Duration))
		switch res.Status {
		case suite.Failed:
			c.Failed++
			f := tc.CreateElement("failure")
			f.CreateAttr("message", res.Message)
			f.SetText(res.Message)
			if res.Screenshot != "" {
				tc.CreateElement("system-out").SetText(fmt.Sprintf("[[ATTACHMENT|%s]]", res.Screenshot))
			}
		case suite.Skipped:
			c.Skipped++
			tc.CreateElement("skipped").CreateAttr("message", res.Message)
		}
	}

	for group, ts := range suites {
		c := counts[group]
		ts.CreateAttr("tests", strconv.Itoa(c.Total))
		ts.CreateAttr("failures", strconv.Itoa(c.Failed))
		ts.CreateAttr("skipped", strconv.Itoa(c.Skipped))
	}

	doc.Indent(2)
	_, err := doc.WriteTo(r.writer)
	return err
}

func addProperty(props *etree.Element, name, value string) {
	if value == "" {
		return
	}
	p := props.CreateElement("property")
	p.CreateAttr("name", name)
	p.CreateAttr("value", value)
}

func (r *JUnitReporter) Close() error {
	return r.writer.Close()
}
