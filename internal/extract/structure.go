package extract

import (
	"regexp"
	"sort"
	"strings"

	"studybuddy/internal/models"
)

var headingPattern = regexp.MustCompile(`(?i)^(?:(#{1,4})\s+(.+)|(?:chapter|section|part|unit)\s+[0-9IVXLC]+[.:)]?\s*(.*))$`)

// detectChapters scans for markdown headings and "Chapter N"-style lines.
// Position is the rune offset of the heading line, so chunk offsets can be
// mapped back to the chapter they fall under. Absence of structure is not an
// error; the result may be empty.
func detectChapters(text string) []models.Chapter {
	var chapters []models.Chapter
	offset := 0
	for _, raw := range strings.Split(text, "\n") {
		pos := offset
		offset += len([]rune(raw)) + 1
		line := strings.TrimSpace(raw)
		if line == "" || len(line) > 120 {
			continue
		}
		m := headingPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := line
		level := 1
		if m[1] != "" {
			level = len(m[1])
			title = strings.TrimSpace(m[2])
		} else if strings.TrimSpace(m[3]) != "" {
			title = line
		}
		if title == "" {
			continue
		}
		chapters = append(chapters, models.Chapter{Title: title, Level: level, Position: pos})
	}
	return chapters
}

var topicStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "are": true, "from": true, "was": true, "were": true,
	"have": true, "has": true, "not": true, "but": true, "you": true,
	"can": true, "will": true, "which": true, "their": true, "its": true,
	"into": true, "also": true, "than": true, "then": true, "when": true,
	"what": true, "each": true, "these": true, "such": true, "they": true,
	"been": true, "more": true, "some": true, "other": true, "between": true,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z]{3,}`)

// detectTopics is a frequency-based heuristic: the most common non-stopword
// terms in the document, most frequent first.
func detectTopics(text string, limit int) []string {
	freq := map[string]int{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if topicStopwords[w] {
			continue
		}
		freq[w]++
	}
	type wc struct {
		word  string
		count int
	}
	list := make([]wc, 0, len(freq))
	for w, c := range freq {
		if c < 2 {
			continue
		}
		list = append(list, wc{w, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count == list[j].count {
			return list[i].word < list[j].word
		}
		return list[i].count > list[j].count
	})
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]string, 0, len(list))
	for _, x := range list {
		out = append(out, x.word)
	}
	return out
}
