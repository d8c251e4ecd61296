package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"studybuddy/internal/util"
)

// A .docx file is a zip archive; the body text lives in word/document.xml as
// <w:p> paragraphs containing <w:t> text runs.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx archive: %v", util.ErrExtractionFailed, err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: docx has no word/document.xml", util.ErrExtractionFailed)
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open docx document: %v", util.ErrExtractionFailed, err)
	}
	defer rc.Close()

	text, err := docxParagraphs(rc)
	if err != nil {
		return "", fmt.Errorf("%w: parse docx xml: %v", util.ErrExtractionFailed, err)
	}
	return text, nil
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out       strings.Builder
		inText    bool
		paragraph strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if paragraph.Len() > 0 {
					out.WriteString(paragraph.String())
					out.WriteString("\n")
					paragraph.Reset()
				}
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	if paragraph.Len() > 0 {
		out.WriteString(paragraph.String())
		out.WriteString("\n")
	}
	return out.String(), nil
}
