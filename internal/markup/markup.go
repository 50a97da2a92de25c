// Package markup renders the lightweight markdown used in assistant replies to HTML.
package markup

import "regexp"

type pass struct {
	re   *regexp.Regexp
	repl string
}

// passes run in order; later passes see the output of earlier ones.
var passes = []pass{
	// fenced code, language tag dropped
	{regexp.MustCompile("(?s)```([a-z]*)\n(.*?)\n```"), "<pre><code>$2</code></pre>"},

	// headers
	{regexp.MustCompile(`(?m)^### (.*)$`), "<h3>$1</h3>"},
	{regexp.MustCompile(`(?m)^## (.*)$`), "<h2>$1</h2>"},
	{regexp.MustCompile(`(?m)^# (.*)$`), "<h1>$1</h1>"},

	// emphasis
	{regexp.MustCompile(`\*\*(.*?)\*\*`), "<strong>$1</strong>"},
	{regexp.MustCompile(`\*(.*?)\*`), "<em>$1</em>"},
	{regexp.MustCompile(`~~(.*?)~~`), "<s>$1</s>"},

	{regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`), `<a href="$2" target="_blank">$1</a>`},

	{regexp.MustCompile("`([^`]+)`"), "<code>$1</code>"},

	// list items; the newline in front of each item is consumed. Mixing numbered
	// and dashed items in one list produces nested, unbalanced <li> tags.
	{regexp.MustCompile(`(?:^|\n)- ([^\n]*)`), "<li>$1</li>"},
	{regexp.MustCompile(`(?:^|\n)\* ([^\n]*)`), "<li>$1</li>"},
	{regexp.MustCompile(`(?:^|\n)(\d+)\. ([^\n]*)`), "<li>$1. $2</li>"},
	{regexp.MustCompile(`(?:<li>.*?</li>)+`), "<ul>$0</ul>"},

	{regexp.MustCompile(`(?:^|\n)> ([^\n]*)`), "<blockquote>$1</blockquote>"},

	{regexp.MustCompile(`\n`), "<br>"},
}

// Format converts text to HTML. It does not escape HTML already present in text.
func Format(text string) string {
	if text == "" {
		return ""
	}
	for _, p := range passes {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	return text
}
