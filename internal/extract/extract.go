// Package extract converts uploaded study files into plain text plus
// structural metadata. Extraction is a pure transform over the file bytes;
// it never touches storage.
package extract

import (
	"fmt"
	"strings"

	"studybuddy/internal/models"
	"studybuddy/internal/util"
)

// Extract dispatches on the declared file type (lowercase extension without
// the dot). It returns util.ErrUnsupportedFormat for unrecognized types and
// wraps util.ErrExtractionFailed when a recognized file cannot be read.
func Extract(data []byte, fileType string) (string, models.MaterialMetadata, error) {
	var (
		text string
		meta models.MaterialMetadata
		err  error
	)
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf":
		text, meta, err = extractPDF(data)
	case "docx":
		text, err = extractDOCX(data)
	case "txt", "md", "markdown":
		text = string(data)
	case "png", "jpg", "jpeg", "gif", "webp":
		// Image uploads are stored but carry no machine-readable text.
		return "", models.MaterialMetadata{}, fmt.Errorf("%w: image OCR not enabled", util.ErrExtractionFailed)
	default:
		return "", models.MaterialMetadata{}, fmt.Errorf("%w: %q", util.ErrUnsupportedFormat, fileType)
	}
	if err != nil {
		return "", models.MaterialMetadata{}, err
	}

	text = util.NormalizeWhitespace(util.SanitizeText(text))
	if text == "" {
		return "", models.MaterialMetadata{}, util.ErrNoExtractableText
	}

	meta.WordCount = len(strings.Fields(text))
	meta.Topics = detectTopics(text, 10)
	meta.Chapters = detectChapters(text)
	if meta.Author == "" {
		_, meta.Author = heuristicTitleAndAuthor(text)
	}
	return text, meta, nil
}

// SupportedType reports whether uploads of the given extension are accepted.
// Image types are accepted for storage even though extraction cannot produce
// text for them yet.
func SupportedType(fileType string) bool {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf", "docx", "txt", "md", "markdown", "png", "jpg", "jpeg", "gif", "webp":
		return true
	}
	return false
}

func heuristicTitleAndAuthor(text string) (string, string) {
	nonEmpty := make([]string, 0, 4)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		nonEmpty = append(nonEmpty, line)
		if len(nonEmpty) == 4 {
			break
		}
	}
	title := ""
	author := ""
	if len(nonEmpty) > 0 {
		title = nonEmpty[0]
	}
	for _, line := range nonEmpty {
		low := strings.ToLower(line)
		if strings.HasPrefix(low, "author:") {
			author = strings.TrimSpace(line[len("author:"):])
			break
		}
		if strings.HasPrefix(low, "by ") && len(line) < 80 {
			author = strings.TrimSpace(line[len("by "):])
			break
		}
	}
	return title, author
}
