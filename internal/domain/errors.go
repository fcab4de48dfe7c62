package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRatioFormat = errors.New("invalid aspect ratio format")
	ErrInvalidBrief       = errors.New("invalid campaign brief")
	ErrUnsupportedRatio   = errors.New("unsupported aspect ratio")
	ErrExternalService    = errors.New("external service failure")
	ErrDownload           = errors.New("download failure")
)

// FormatError reports a malformed "W:H" ratio string.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid aspect ratio format: %q, expected number:number (e.g. 1:1, 16:9)", e.Input)
}

func (e *FormatError) Is(target error) bool { return target == ErrInvalidRatioFormat }

// ValidationError lists every field-level problem found in a brief.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid campaign brief"
	}
	return "invalid campaign brief:\n  - " + strings.Join(e.Problems, "\n  - ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidBrief }

// UnsupportedRatioError is raised when a job needs an exact preset size and
// the requested ratio has none. Suggested carries the closest preset.
type UnsupportedRatioError struct {
	Ratio     string
	Suggested string
	Width     int
	Height    int
}

func (e *UnsupportedRatioError) Error() string {
	return fmt.Sprintf("unsupported aspect ratio: %s, closest supported ratio is %s with size %dx%d",
		e.Ratio, e.Suggested, e.Width, e.Height)
}

func (e *UnsupportedRatioError) Is(target error) bool { return target == ErrUnsupportedRatio }

// ServiceError wraps failures from the image or language-model services,
// including non-succeeded terminal job statuses.
type ServiceError struct {
	Service string
	Op      string
	Status  string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Status != "" {
		b.WriteString(": status ")
		b.WriteString(e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool { return target == ErrExternalService }

// DownloadError reports a single output that could not be written to disk.
type DownloadError struct {
	Index int
	URL   string
	Path  string
	Err   error
}

func (e *DownloadError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("output #%d: no image url", e.Index)
	}
	return fmt.Sprintf("output #%d: download %s: %v", e.Index, e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

func (e *DownloadError) Is(target error) bool { return target == ErrDownload }
