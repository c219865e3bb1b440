package models

import (
	"image"
	"path/filepath"
	"strings"
	"time"
)

// Format is the closed set of document formats the extractor understands.
type Format string

const (
	FormatUnknown Format = ""
	FormatText    Format = "text"
	FormatPDF     Format = "pdf"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatJSON    Format = "json"
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatPDF, FormatCSV, FormatXLSX, FormatJSON, FormatJPEG, FormatPNG}
}

var extToFormat = map[string]Format{
	".txt":  FormatText,
	".pdf":  FormatPDF,
	".csv":  FormatCSV,
	".xlsx": FormatXLSX,
	".json": FormatJSON,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
}

var formatToMIME = map[Format]string{
	FormatText: "text/plain",
	FormatPDF:  "application/pdf",
	FormatCSV:  "text/csv",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatJSON: "application/json",
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
}

// FormatFromFilename maps a file extension (case-insensitive) to a Format.
// Unrecognized extensions yield FormatUnknown.
func FormatFromFilename(name string) Format {
	return extToFormat[strings.ToLower(filepath.Ext(name))]
}

// Supported reports whether the extractor has a strategy for f.
func (f Format) Supported() bool {
	_, ok := formatToMIME[f]
	return ok
}

// IsImage reports whether f is a raster image format.
func (f Format) IsImage() bool {
	return f == FormatJPEG || f == FormatPNG
}

// IsImageBearing reports whether layout-aware classification applies to f.
func (f Format) IsImageBearing() bool {
	return f == FormatPDF || f.IsImage()
}

// IsTabular reports whether f is parsed into rows and columns.
func (f Format) IsTabular() bool {
	return f == FormatCSV || f == FormatXLSX
}

// MimeType returns the canonical MIME type, or "" for unknown formats.
func (f Format) MimeType() string {
	return formatToMIME[f]
}

func (f Format) String() string {
	if f == FormatUnknown {
		return "unknown"
	}
	return string(f)
}

// DocumentHandle references an uploaded document staged for one request.
type DocumentHandle struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Format     Format    `json:"format"`
	StorageKey string    `json:"storageKey"`
	Path       string    `json:"-"`
	Size       int64     `json:"size"`
	Hash       string    `json:"hash"`
	MimeType   string    `json:"mimeType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// WithPath returns a copy of the handle that points at a local file.
func (d DocumentHandle) WithPath(path string) *DocumentHandle {
	d.Path = path
	return &d
}

// Entity is a recognized named-entity span.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

func (e Entity) String() string {
	return e.Text + " (" + e.Label + ")"
}

// Box is a word bounding box in source-image pixels: x0, y0, x1, y1.
type Box [4]int

// BoxFromRect converts an image rectangle into a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y}
}

// LayoutToken is a single OCR word with its position and confidence (0-100).
type LayoutToken struct {
	Word       string  `json:"word"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// LayoutInput is what a layout-aware classifier consumes. Words and Boxes
// are parallel slices.
type LayoutInput struct {
	Image image.Image
	Words []string
	Boxes []Box
}

// Len returns the number of words.
func (in *LayoutInput) Len() int {
	if in == nil {
		return 0
	}
	return len(in.Words)
}

// OutsideLabel marks tokens that carry no structured meaning.
const OutsideLabel = "O"

// StructuredLabel is the classifier's arg-max label for one token.
type StructuredLabel struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

func (l StructuredLabel) String() string {
	return l.Token + ":" + l.Label
}

// Extraction is the result of one extract → normalize → recognize run.
type Extraction struct {
	Text       string   `json:"text"`
	Normalized string   `json:"normalized"`
	Entities   []Entity `json:"entities"`
}
