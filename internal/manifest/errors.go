package manifest

import "errors"

// Manifest errors abort an import before anything is uploaded.
var (
	ErrNoCSV             = errors.New("no csv manifest found in selection")
	ErrEmptyCSV          = errors.New("csv is empty")
	ErrMissingHeaders    = errors.New("csv is missing required columns (name, file, department)")
	ErrInvalidDepartment = errors.New("invalid department")
	ErrNoValidRows       = errors.New("csv has no valid rows (every file cell is empty)")
)

// IsManifestError reports whether err belongs to the abort-before-start family.
func IsManifestError(err error) bool {
	return errors.Is(err, ErrNoCSV) ||
		errors.Is(err, ErrEmptyCSV) ||
		errors.Is(err, ErrMissingHeaders) ||
		errors.Is(err, ErrInvalidDepartment) ||
		errors.Is(err, ErrNoValidRows)
}
