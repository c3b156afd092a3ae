package cdp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
)

func TestScripts(t *testing.T) {
	t.Run("EscapesQueryAndText", func(t *testing.T) {
		loc := browser.Query(`input[placeholder="Username"]`).WithText("it's \"quoted\"\n")
		script := inspectScript(loc)

		assert.Contains(t, script, `"input[placeholder=\"Username\"]"`)
		assert.Contains(t, script, `"it's \"quoted\"\n"`)
		assert.Contains(t, script, "document.querySelectorAll(query)")
	})

	t.Run("TagCarriesToken", func(t *testing.T) {
		script := tagScript(browser.Query("button"), "abc-123")
		assert.Contains(t, script, `"`+refAttribute+`"`)
		assert.Contains(t, script, `"abc-123"`)
	})

	t.Run("EmptyTextFilter", func(t *testing.T) {
		assert.Contains(t, textScript(browser.Query("h6")), `hasText = ""`)
		assert.Contains(t, allTextsScript(browser.Query("li")), "matches.map")
	})
}
