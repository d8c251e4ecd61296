package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"studybuddy/internal/models"
	"studybuddy/internal/util"

	"github.com/ledongthuc/pdf"
)

func extractPDF(data []byte) (string, models.MaterialMetadata, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", models.MaterialMetadata{}, fmt.Errorf("%w: open pdf: %v", util.ErrExtractionFailed, err)
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", models.MaterialMetadata{}, fmt.Errorf("%w: extract pdf text: %v", util.ErrExtractionFailed, err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", models.MaterialMetadata{}, fmt.Errorf("%w: read extracted text: %v", util.ErrExtractionFailed, err)
	}

	meta := models.MaterialMetadata{PageCount: r.NumPage()}
	return buf.String(), meta, nil
}
