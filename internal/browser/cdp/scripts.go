// internal/browser/cdp/scripts.go
package cdp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/hrmcheck/internal/browser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// refAttribute marks the element an action is about to target, so chromedp
// can address exactly the first match of a text-filtered locator.
const refAttribute = "data-hrmcheck-ref"

// resolveJS is the shared element lookup. It expects `query` and `hasText`
// to be defined and leaves the matches in `matches`.
const resolveJS = `
	let matches = Array.from(document.querySelectorAll(query));
	if (hasText) {
		matches = matches.filter(el => (el.textContent || '').includes(hasText));
	}`

const inspectJS = `(() => {
	const query = %s, hasText = %s;
	%s
	const first = matches[0];
	let visible = false;
	if (first) {
		const style = window.getComputedStyle(first);
		const rect = first.getBoundingClientRect();
		visible = style.visibility !== 'hidden' && style.display !== 'none' && rect.width > 0 && rect.height > 0;
	}
	return {count: matches.length, visible: visible};
})()`

const tagJS = `(() => {
	const query = %s, hasText = %s, attr = %s, token = %s;
	document.querySelectorAll('[' + attr + ']').forEach(el => el.removeAttribute(attr));
	%s
	if (!matches.length) { return false; }
	matches[0].setAttribute(attr, token);
	return true;
})()`

const textJS = `(() => {
	const query = %s, hasText = %s;
	%s
	if (!matches.length) { return {found: false, text: null}; }
	return {found: true, text: matches[0].textContent};
})()`

const allTextsJS = `(() => {
	const query = %s, hasText = %s;
	%s
	return matches.map(el => el.textContent || '');
})()`

type inspectResult struct {
	Count   int  `json:"count"`
	Visible bool `json:"visible"`
}

type textResult struct {
	Found bool    `json:"found"`
	Text  *string `json:"text"`
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	out, err := json.MarshalToString(s)
	if err != nil {
		// A Go string always encodes.
		panic(err)
	}
	return out
}

func inspectScript(loc browser.Locator) string {
	return fmt.Sprintf(inspectJS, jsString(loc.Query), jsString(loc.HasText), resolveJS)
}

func tagScript(loc browser.Locator, token string) string {
	return fmt.Sprintf(tagJS, jsString(loc.Query), jsString(loc.HasText), jsString(refAttribute), jsString(token), resolveJS)
}

func textScript(loc browser.Locator) string {
	return fmt.Sprintf(textJS, jsString(loc.Query), jsString(loc.HasText), resolveJS)
}

func allTextsScript(loc browser.Locator) string {
	return fmt.Sprintf(allTextsJS, jsString(loc.Query), jsString(loc.HasText), resolveJS)
}
