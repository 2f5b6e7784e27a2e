package manifest

import (
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/njprem/regdocs/internal/domain"
)

// Entry is one validated upload job.
type Entry struct {
	Filename    string
	DisplayName string
	Department  string
	LastUpdate  string
}

func (e Entry) HasDate() bool {
	return e.LastUpdate != ""
}

// Build turns parsed rows into upload jobs. Rows without a file are skipped.
// The first row with a department outside the valid set aborts the whole
// build.
func Build(cols Columns, rows []RawRow, departments domain.DepartmentSet) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for _, raw := range rows {
		rec := cols.Record(raw)

		filename := strings.ReplaceAll(strings.TrimSpace(rec.File), `\`, "/")
		if filename == "" {
			continue
		}
		filename = EnsurePDFExt(filename)

		display := strings.TrimSpace(rec.Name)
		if display == "" {
			display = filename
		}

		department := strings.TrimSpace(rec.Department)
		if !departments.Contains(department) {
			return nil, fmt.Errorf("%w %q; valid departments: %s", ErrInvalidDepartment, department, departments.String())
		}

		entries = append(entries, Entry{
			Filename:    filename,
			DisplayName: display,
			Department:  department,
			LastUpdate:  NormalizeDate(rec.Date),
		})
	}

	if len(entries) == 0 {
		return nil, ErrNoValidRows
	}
	return entries, nil
}

// Load reads and parses a manifest file.
func Load(f File) (Sheet, error) {
	rc, err := f.Open()
	if err != nil {
		return Sheet{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Sheet{}, err
	}
	return Parse(string(data)), nil
}

// EnsurePDFExt appends ".pdf" unless the name already ends with it in any case.
func EnsurePDFExt(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name
	}
	return name + ".pdf"
}

var datePattern = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)

// NormalizeDate rewrites Y/M/D style dates ('/', '.' or '-' separated) as
// YYYY-MM-DD. Anything else is returned trimmed but otherwise verbatim.
func NormalizeDate(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	unified := strings.NewReplacer(".", "/", "-", "/").Replace(t)
	m := datePattern.FindStringSubmatch(unified)
	if m == nil {
		return t
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
}

var pdfSuffixRe = regexp.MustCompile(`(?i)\.pdf$`)

// DocNumber derives a document number from a manifest filename: the last path
// segment without its .pdf extension.
func DocNumber(filename string) string {
	return pdfSuffixRe.ReplaceAllString(path.Base(filename), "")
}
