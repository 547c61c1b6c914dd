// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	headingLine = regexp.MustCompile(`^#{1,6}\s+(.+)$`)

	// commentPage matches <!-- page 3 --> markers (1-based).
	commentPage = regexp.MustCompile(`^<!--\s*page\s+(\d+)\s*-->$`)

	// markerPage matches Marker pagination separators such as
	// {2}------------------------------------------------ (0-based).
	markerPage = regexp.MustCompile(`^\{(\d+)\}-{3,}$`)
)

// Section is a run of lines that starts at a heading, or the preamble
// before the first heading. The heading line itself is the first line of
// Body. Title is empty for the preamble.
type Section struct {
	Title string
	Body  string

	// StartPage and EndPage are 1-based and zero when the document has
	// no page markers.
	StartPage int
	EndPage   int
}

// Segment splits Markdown at heading lines, preserving document order.
// The preamble is emitted only when it holds non-blank text. Page markers
// are consumed and recorded as page ranges.
func Segment(markdown string) []Section {
	var (
		sections []Section
		cur      Section
		lines    []string
		sawPage  bool
	)
	page := 1

	flush := func() {
		body := strings.Join(lines, "\n")
		if cur.Title != "" || strings.TrimSpace(body) != "" {
			cur.Body = body
			sections = append(sections, cur)
		}
		cur = Section{}
		lines = nil
	}

	appendLine := func(line string) {
		lines = append(lines, line)
		if strings.TrimSpace(line) == "" {
			return
		}
		if cur.StartPage == 0 {
			cur.StartPage = page
		}
		cur.EndPage = page
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)

		if n, ok := parsePageMarker(trimmed); ok {
			page = n
			sawPage = true
			continue
		}

		if title, ok := headingTitle(trimmed); ok {
			flush()
			cur.Title = title
			appendLine(line)
			continue
		}

		appendLine(line)
	}
	flush()

	if !sawPage {
		for i := range sections {
			sections[i].StartPage = 0
			sections[i].EndPage = 0
		}
	}
	return sections
}

// headingTitle returns the heading text of a trimmed line.
func headingTitle(trimmed string) (string, bool) {
	m := headingLine.FindStringSubmatch(trimmed)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// parsePageMarker returns the 1-based page number announced by a marker line.
func parsePageMarker(trimmed string) (int, bool) {
	if m := commentPage.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if m := markerPage.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n + 1, true
	}
	return 0, false
}
