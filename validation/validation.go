package validation

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/nijaru/captioner/errors"
)

// Validator checks client input before any work is started for it.
type Validator struct {
	maxUploadSize int64
}

func New(maxUploadSize int64) *Validator {
	return &Validator{maxUploadSize: maxUploadSize}
}

func (v *Validator) ValidateUpload(header *multipart.FileHeader) error {
	const op = "Validator.ValidateUpload"

	if header == nil {
		return errors.InvalidInput(op, nil, "video file is required")
	}

	if header.Size == 0 {
		return errors.InvalidInput(op, nil, fmt.Sprintf("video file %q is empty", header.Filename))
	}

	if v.maxUploadSize > 0 && header.Size > v.maxUploadSize {
		return errors.TooLarge(op, nil,
			fmt.Sprintf("video file exceeds maximum size of %d bytes", v.maxUploadSize))
	}

	return nil
}

// ParseWordsPerLine parses a form value, returning def when it is blank.
func ParseWordsPerLine(value string, def int) (int, error) {
	const op = "validation.ParseWordsPerLine"

	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.InvalidInput(op, nil, fmt.Sprintf("wordsPerLine must be an integer, got %q", value))
	}
	return n, nil
}
