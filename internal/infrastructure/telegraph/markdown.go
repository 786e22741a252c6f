package telegraph

import (
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

var inlineExpr = regexp.MustCompile(`\*\*([^*]+)\*\*|\[([^\]]+)\]\(([^)]+)\)`)

// Formatter converts the digest's restricted markdown dialect into the HTML
// subset Telegraph accepts. Stateless apart from logging downgraded links.
type Formatter struct {
	logger *slog.Logger
}

// NewFormatter builds a formatter.
func NewFormatter(logger *slog.Logger) *Formatter {
	return &Formatter{logger: logger}
}

// ToHTML renders the markdown. The single leading "# " title line is
// dropped (the page carries its own title); "## " becomes <h4>, "- " lines
// become <li> inside an auto-managed <ul>, blank lines become <p><br/></p>
// and close any open list, everything else becomes <p>. The output contains
// no newlines between tags: Telegraph turns bare newlines into empty list
// items.
func (f *Formatter) ToHTML(markdown string) string {
	var (
		out    strings.Builder
		inList bool
	)

	closeList := func() {
		if inList {
			out.WriteString("</ul>")
			inList = false
		}
	}

	for _, line := range strings.Split(strings.TrimSpace(markdown), "\n") {
		stripped := strings.TrimSpace(line)

		switch {
		case stripped == "":
			closeList()
			out.WriteString("<p><br/></p>")

		case strings.HasPrefix(stripped, "## "):
			closeList()
			out.WriteString("<h4>")
			out.WriteString(f.inline(stripped[3:]))
			out.WriteString("</h4>")

		case strings.HasPrefix(stripped, "# "):
			// Top-level title: the page already has one.

		case strings.HasPrefix(stripped, "- "):
			if !inList {
				out.WriteString("<ul>")
				inList = true
			}
			out.WriteString("<li>")
			out.WriteString(f.inline(stripped[2:]))
			out.WriteString("</li>")

		default:
			closeList()
			out.WriteString("<p>")
			out.WriteString(f.inline(stripped))
			out.WriteString("</p>")
		}
	}
	closeList()

	return out.String()
}

// inline renders **bold** and [text](url) with everything else escaped.
// Links with a scheme other than http/https are downgraded to plain text.
func (f *Formatter) inline(text string) string {
	var out strings.Builder
	pos := 0

	for _, m := range inlineExpr.FindAllStringSubmatchIndex(text, -1) {
		out.WriteString(html.EscapeString(text[pos:m[0]]))

		if m[2] >= 0 { // **bold**
			out.WriteString("<strong>")
			out.WriteString(html.EscapeString(text[m[2]:m[3]]))
			out.WriteString("</strong>")
		} else { // [text](url)
			linkText := html.EscapeString(text[m[4]:m[5]])
			linkURL := text[m[6]:m[7]]
			if safeURL(linkURL) {
				out.WriteString(`<a href="`)
				out.WriteString(html.EscapeString(linkURL))
				out.WriteString(`">`)
				out.WriteString(linkText)
				out.WriteString("</a>")
			} else {
				if f.logger != nil {
					f.logger.Warn("unsafe link downgraded to text", "url", truncate(linkURL, 50))
				}
				out.WriteString(linkText)
			}
		}

		pos = m[1]
	}
	out.WriteString(html.EscapeString(text[pos:]))

	return out.String()
}

func safeURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https", "":
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
