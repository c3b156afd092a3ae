package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/xkilldash9x/hrmcheck/internal/suite"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	skipLabel = color.New(color.FgYellow).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
)

func label(s suite.Status) string {
	switch s {
	case suite.Passed:
		return passLabel("PASS")
	case suite.Failed:
		return failLabel("FAIL")
	default:
		return skipLabel("SKIP")
	}
}

// PrintSummary writes a per-scenario line and a closing tally to w. Colors
// follow color.NoColor, so redirected output stays plain.
func PrintSummary(w io.Writer, report *suite.RunReport) {
	for _, res := range report.Results {
		fmt.Fprintf(w, "%s %s %s\n", label(res.Status), res.ID, dim(fmt.Sprintf("(%dms)", res.Duration.Milliseconds())))
		if res.Status != suite.Passed && res.Message != "" {
			fmt.Fprintf(w, "     %s\n", res.Message)
		}
		if res.Screenshot != "" {
			fmt.Fprintf(w, "     screenshot: %s\n", res.Screenshot)
		}
	}

	sum := report.Summary()
	fmt.Fprintf(w, "\n%s %s, %s, %s in %s\n",
		dim("run "+report.RunID+":"),
		passLabel(fmt.Sprintf("%d passed", sum.Passed)),
		failLabel(fmt.Sprintf("%d failed", sum.Failed)),
		skipLabel(fmt.Sprintf("%d skipped", sum.Skipped)),
		report.Duration().Round(time.Millisecond))
}
