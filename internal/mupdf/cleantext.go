package mupdf

import (
	"fmt"
	"strings"
)

// CleanPageText strips page-number lines, header/footer boilerplate and
// noise from extracted page text, then rejoins sentences broken by layout.
// Used when a page's content is materialized as plain text.
func CleanPageText(text string, pageNum int) string {
	lines := strings.Split(text, "\n")
	var kept []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isPageNumberLine(trimmed, pageNum) {
			continue
		}
		if isHeaderFooterLine(trimmed) {
			continue
		}
		if isNoiseLine(trimmed) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(fixBrokenLines(strings.Join(kept, "\n")))
}

func isPageNumberLine(line string, pageNum int) bool {
	if line == fmt.Sprintf("%d", pageNum) {
		return true
	}
	patterns := []string{
		fmt.Sprintf("Page %d", pageNum),
		fmt.Sprintf("- %d -", pageNum),
		fmt.Sprintf("[%d]", pageNum),
	}
	for _, p := range patterns {
		if strings.EqualFold(line, p) {
			return true
		}
	}
	return false
}

func isHeaderFooterLine(line string) bool {
	if len(line) < 3 {
		return true
	}
	// short shouty ASCII lines are almost always running heads; the rule
	// must not fire on CJK text, where case folding is identity
	if len(line) < 50 && hasASCIILetter(line) && strings.ToUpper(line) == line {
		if len(strings.Fields(line)) <= 2 {
			return true
		}
	}
	footerMarkers := []string{"CONFIDENTIAL", "COPYRIGHT", "ALL RIGHTS RESERVED", "PROPRIETARY"}
	upper := strings.ToUpper(line)
	for _, m := range footerMarkers {
		if strings.Contains(upper, m) && len(line) < 100 {
			return true
		}
	}
	return false
}

func hasASCIILetter(line string) bool {
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func isNoiseLine(line string) bool {
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r > 0x7f {
			return false
		}
	}
	return true
}

func fixBrokenLines(text string) string {
	lines := strings.Split(text, "\n")
	var fixed []string

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if i < len(lines)-1 {
			trimmed := strings.TrimSpace(line)
			next := strings.TrimSpace(lines[i+1])
			if trimmed != "" && next != "" {
				last := trimmed[len(trimmed)-1]
				sentenceEnd := last == '.' || last == '!' || last == '?' || last == ':' || last == ';'
				if !sentenceEnd && next[0] >= 'a' && next[0] <= 'z' && !strings.HasSuffix(trimmed, "-") {
					fixed = append(fixed, trimmed+" "+next)
					i++
					continue
				}
			}
		}
		fixed = append(fixed, line)
	}
	return strings.Join(fixed, "\n")
}
