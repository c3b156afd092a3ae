// internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/hrmcheck/internal/reporting"
	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

var testMeta = reporting.Meta{
	ToolVersion: "v1.0.0-test",
	BaseURL:     "https://hrm.test/web",
	CommandLine: reporting.CommandLine([]string{"hrmcheck", "run", "--filter", "login/*"}),
}

func sampleReport() *suite.RunReport {
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	result := func(group suite.Group, name string, status suite.Status, msg, shot string) suite.Result {
		return suite.Result{
			ID:         string(group) + "/" + name,
			Name:       name,
			Group:      group,
			Status:     status,
			StatusText: status.String(),
			Message:    msg,
			Screenshot: shot,
			StartedAt:  start,
			Duration:   250 * time.Millisecond,
		}
	}
	return &suite.RunReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Results: []suite.Result{
			result(suite.GroupLogin, "form-visible", suite.Passed, "", ""),
			result(suite.GroupLogin, "invalid-credentials", suite.Failed, `expected <alert> & "text"`, "/tmp/shots/login-invalid-credentials-1.png"),
			result(suite.GroupDashboard, "quick-launch", suite.Skipped, "quick launch is not available", ""),
			result(suite.GroupAPI, "login-page-status", suite.Passed, "", ""),
		},
	}
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "hrmcheck run --filter 'login/*'", testMeta.CommandLine)
}

func TestNew(t *testing.T) {
	t.Run("Stdout", func(t *testing.T) {
		for _, out := range []string{"", "stdout"} {
			r, err := reporting.New(reporting.FormatJSON, out, testMeta)
			require.NoError(t, err)
			assert.NoError(t, r.Close())
		}
	})

	t.Run("UnsupportedFormatCreatesNoFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.sarif")
		r, err := reporting.New("sarif", path, testMeta)
		assert.Nil(t, r)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported output format: sarif")
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("UnwritablePath", func(t *testing.T) {
		_, err := reporting.New(reporting.FormatHTML, filepath.Join(t.TempDir(), "missing", "dir", "r.html"), testMeta)
		assert.Error(t, err)
	})
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	formats := []string{reporting.FormatHTML, reporting.FormatJUnit, reporting.FormatJSON}

	paths, err := reporting.WriteAll(sampleReport(), dir, formats, testMeta)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "report.html"), paths[0])
	assert.Equal(t, filepath.Join(dir, "junit.xml"), paths[1])
	assert.Equal(t, filepath.Join(dir, "report.json"), paths[2])

	t.Run("JUnit", func(t *testing.T) {
		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromFile(paths[1]))
		root := doc.SelectElement("testsuites")
		require.NotNil(t, root)
		assert.Equal(t, "4", root.SelectAttrValue("tests", ""))
		assert.Equal(t, "1", root.SelectAttrValue("failures", ""))
		assert.Equal(t, "1", root.SelectAttrValue("skipped", ""))
		assert.Equal(t, "2.000", root.SelectAttrValue("time", ""))

		suites := root.SelectElements("testsuite")
		require.Len(t, suites, 3)
		assert.Equal(t, "login", suites[0].SelectAttrValue("name", ""))
		assert.Equal(t, "2", suites[0].SelectAttrValue("tests", ""))
		assert.Equal(t, "1", suites[0].SelectAttrValue("failures", ""))

		failure := suites[0].FindElement("testcase[@name='invalid-credentials']/failure")
		require.NotNil(t, failure)
		assert.Equal(t, `expected <alert> & "text"`, failure.SelectAttrValue("message", ""))
		out := suites[0].FindElement("testcase[@name='invalid-credentials']/system-out")
		require.NotNil(t, out)
		assert.Contains(t, out.Text(), "login-invalid-credentials-1.png")

		assert.NotNil(t, suites[1].FindElement("testcase[@name='quick-launch']/skipped"))
		prop := suites[2].FindElement("properties/property[@name='command_line']")
		require.NotNil(t, prop)
		assert.Equal(t, testMeta.CommandLine, prop.SelectAttrValue("value", ""))
	})

	t.Run("JSON", func(t *testing.T) {
		raw, err := os.ReadFile(paths[2])
		require.NoError(t, err)
		var doc struct {
			Meta    reporting.Meta `json:"meta"`
			Summary suite.Summary  `json:"summary"`
			Run     struct {
				RunID   string `json:"run_id"`
				Results []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"results"`
			} `json:"run"`
		}
		require.NoError(t, jsoniter.Unmarshal(raw, &doc))
		assert.Equal(t, testMeta, doc.Meta)
		assert.Equal(t, suite.Summary{Total: 4, Passed: 2, Failed: 1, Skipped: 1}, doc.Summary)
		assert.Equal(t, "run-1", doc.Run.RunID)
		require.Len(t, doc.Run.Results, 4)
		assert.Equal(t, "failed", doc.Run.Results[1].Status)
	})

	t.Run("HTML", func(t *testing.T) {
		raw, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		html := string(raw)
		assert.Contains(t, html, "run-1")
		assert.Contains(t, html, "login/invalid-credentials")
		assert.Contains(t, html, "expected &lt;alert&gt; &amp; &#34;text&#34;")
		assert.NotContains(t, html, "<alert>")
		assert.Contains(t, html, `>login-invalid-credentials-1.png</a>`)
		assert.Contains(t, html, `<td class="skipped">skipped</td>`)
	})

	t.Run("UnknownFormatStops", func(t *testing.T) {
		paths, err := reporting.WriteAll(sampleReport(), t.TempDir(), []string{reporting.FormatJSON, "pdf"}, testMeta)
		assert.Error(t, err)
		assert.Len(t, paths, 1)
	})
}

func TestPrintSummary(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	reporting.PrintSummary(&buf, sampleReport())
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "PASS login/form-visible (250ms)", lines[0])
	assert.Equal(t, "FAIL login/invalid-credentials (250ms)", lines[1])
	assert.Contains(t, out, "screenshot: /tmp/shots/login-invalid-credentials-1.png")
	assert.Contains(t, out, "SKIP dashboard/quick-launch (250ms)")
	assert.Contains(t, out, "run run-1: 2 passed, 1 failed, 1 skipped in 2s")
}
