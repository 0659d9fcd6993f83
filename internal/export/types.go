// Package export renders an experience as a printable PDF report.
package export

import "errors"

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrNothingToExport is returned for a nil experience.
	ErrNothingToExport = errors.New("export: no experience")
)
