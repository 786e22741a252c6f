package usecase

import (
	"regexp"
	"strings"

	"rssdigest/internal/domain"
)

const fallbackTitle = "# RSS 新闻摘要"

var categoryHeaderExpr = regexp.MustCompile(`^## (AI|Semi|Smartphone|Other Tech|World News|Misc)\b`)

// SplitDigest partitions a digest into two delivery parts along the fixed
// category groups. Pure function, no I/O.
//
// Categories are reassembled in group order, not source order. Title
// suffixes " (1/2)"/" (2/2)" appear only when both groups have content; a
// group with no qualifying categories yields an empty string.
func SplitDigest(digestText string) (string, string) {
	title, content := splitTitle(digestText)
	sections := parseSections(content)

	part1Sections := collectSections(sections, domain.PartOneCategories)
	part2Sections := collectSections(sections, domain.PartTwoCategories)

	useMarkers := len(part1Sections) > 0 && len(part2Sections) > 0

	return assemblePart(title, " (1/2)", part1Sections, useMarkers),
		assemblePart(title, " (2/2)", part2Sections, useMarkers)
}

// splitTitle returns the first "# " line and everything after it.
func splitTitle(text string) (string, string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return trimmed, strings.Join(lines[i+1:], "\n")
		}
	}
	return "", text
}

// parseSections segments content on known category headers. Text before the
// first header is discarded; a header's remainder on the same line joins its
// section body.
func parseSections(content string) map[string]string {
	sections := map[string]string{}
	var (
		current string
		body    []string
	)

	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = nil
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if match := categoryHeaderExpr.FindStringSubmatch(trimmed); match != nil {
			flush()
			current = match[1]
			if rest := strings.TrimSpace(trimmed[len(match[0]):]); rest != "" {
				body = append(body, rest)
			}
			continue
		}
		if current != "" {
			body = append(body, line)
		}
	}
	flush()

	return sections
}

func collectSections(sections map[string]string, categories []string) []string {
	var out []string
	for _, cat := range categories {
		if body := sections[cat]; body != "" {
			out = append(out, "## "+cat+"\n"+body)
		}
	}
	return out
}

func assemblePart(title, marker string, sections []string, useMarker bool) string {
	if len(sections) == 0 {
		return ""
	}
	if title == "" {
		title = fallbackTitle
	}
	if useMarker {
		title = strings.TrimRight(title, " ") + marker
	}
	return title + "\n\n" + strings.Join(sections, "\n\n")
}
