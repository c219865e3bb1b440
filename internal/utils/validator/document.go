package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/pkg/logger"
)

const DefaultMaxFileSize = 50 * 1024 * 1024

// ErrFileTooLarge is returned when an upload exceeds the configured limit.
var ErrFileTooLarge = errors.New("file too large")

type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

type ValidatorConfig struct {
	MaxFileSize int64
}

type ValidationWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type FileInfo struct {
	Filename  string        `json:"filename"`
	Size      int64         `json:"size"`
	MimeType  string        `json:"mimeType"`
	Extension string        `json:"extension"`
	Format    models.Format `json:"format"`
	Hash      string        `json:"hash"`
}

type ValidationResult struct {
	FileInfo FileInfo            `json:"fileInfo"`
	Warnings []ValidationWarning `json:"warnings,omitempty"`
}

func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil || config.MaxFileSize <= 0 {
		config = &ValidatorConfig{MaxFileSize: DefaultMaxFileSize}
	}
	return &DocumentValidator{logger: log, config: config}
}

// ValidateFile fingerprints an upload. Only the size limit is enforced;
// unknown extensions are left for the extractor to reject and content that
// disagrees with its extension is reported as a warning. The reader is
// rewound before returning.
func (v *DocumentValidator) ValidateFile(file io.ReadSeeker, filename string, size int64) (*ValidationResult, error) {
	result := &ValidationResult{
		FileInfo: FileInfo{
			Filename:  filename,
			Size:      size,
			Extension: strings.ToLower(filepath.Ext(filename)),
			Format:    models.FormatFromFilename(filename),
		},
	}

	if size > v.config.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, size, v.config.MaxFileSize)
	}

	hash, err := calculateHash(file)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hash
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to reset file pointer: %w", err)
	}
	result.FileInfo.MimeType = mtype.String()

	if w, ok := checkMimeType(result.FileInfo.Format, mtype); !ok {
		result.Warnings = append(result.Warnings, w)
		v.logger.Warn("Upload content does not match its extension",
			logger.String("filename", filename),
			logger.String("detected", mtype.String()),
			logger.String("expected", result.FileInfo.Format.MimeType()),
		)
	}

	return result, nil
}

func checkMimeType(format models.Format, detected *mimetype.MIME) (ValidationWarning, bool) {
	expected := format.MimeType()
	if expected == "" {
		return ValidationWarning{}, true
	}
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(expected) {
			return ValidationWarning{}, true
		}
	}
	// csv and json are plain text underneath
	if format == models.FormatCSV || format == models.FormatJSON {
		if detected.Is("text/plain") {
			return ValidationWarning{}, true
		}
	}
	return ValidationWarning{
		Code:    "MIME_MISMATCH",
		Message: fmt.Sprintf("Detected MIME type %s for extension of %s", detected.String(), format),
		Field:   "mimeType",
	}, false
}

func calculateHash(r io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
