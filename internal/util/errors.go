package util

import "errors"

var (
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrExtractionFailed   = errors.New("failed to extract text from file")
	ErrNoExtractableText  = errors.New("no extractable text found in file")
	ErrBackendUnavailable = errors.New("embedding backend unavailable")
	ErrNotIndexed         = errors.New("material is not indexed")
	ErrGenerationFailed   = errors.New("question generation failed validation")
	ErrGradingUnavailable = errors.New("automatic grading unavailable")

	ErrMaterialNotFound = errors.New("material not found")
	ErrTestNotFound     = errors.New("test not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrChoiceNotFound   = errors.New("choice not found")
)
