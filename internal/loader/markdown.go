package loader

import "strings"

// section is a heading and the body text up to the next heading of any level.
type section struct {
	heading string
	body    string
}

// splitSections splits markdown at ATX headings. Text before the first heading
// becomes a section with an empty heading. Lines inside fenced code blocks are
// never treated as headings. Lines have no length limit.
func splitSections(content string) []section {
	var (
		sections []section
		heading  string
		body     strings.Builder
		inFence  bool
		fence    string
	)
	flush := func() {
		if text := strings.TrimSpace(body.String()); text != "" {
			sections = append(sections, section{heading: heading, body: text})
		}
		body.Reset()
	}

	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case !inFence:
				inFence, fence = true, marker
			case strings.HasPrefix(trimmed, fence):
				inFence = false
			}
		}
		if !inFence {
			if h, ok := atxHeading(line); ok {
				flush()
				heading = h
				continue
			}
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	return sections
}

func fenceMarker(line string) string {
	switch {
	case strings.HasPrefix(line, "```"):
		return "```"
	case strings.HasPrefix(line, "~~~"):
		return "~~~"
	}
	return ""
}

// atxHeading reports whether line is "#".."######" followed by a space or end of line,
// with at most three leading spaces, and returns the heading text.
func atxHeading(line string) (string, bool) {
	indent := len(line) - len(strings.TrimLeft(line, " "))
	if indent > 3 {
		return "", false
	}
	s := line[indent:]
	level := 0
	for level < len(s) && s[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return "", false
	}
	rest := s[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	text := strings.TrimSpace(rest)
	// Optional closing sequence: "## Title ##".
	if trimmed := strings.TrimRight(text, "#"); trimmed != text && (trimmed == "" || strings.HasSuffix(trimmed, " ")) {
		text = strings.TrimSpace(trimmed)
	}
	return text, true
}
