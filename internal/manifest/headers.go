package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Accepted header aliases per logical column, in priority order.
var (
	NameAliases       = []string{"法規名稱", "名稱", "display_name", "displayName", "name", "title"}
	FileAliases       = []string{"檔名", "檔案", "檔案名稱", "filename", "file"}
	DateAliases       = []string{"最後更新日期", "更新日期", "last_update", "updated_at", "date"}
	DepartmentAliases = []string{"處室", "部門", "department"}
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	headerNoiseRe = regexp.MustCompile(`[^\w\x{4e00}-\x{9fff}]`)
)

// NormalizeHeader folds a header label for alias comparison: NFKC, lower case,
// no whitespace, and nothing but ASCII word characters and CJK ideographs.
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(norm.NFKC.String(h)))
	h = whitespaceRe.ReplaceAllString(h, "")
	return headerNoiseRe.ReplaceAllString(h, "")
}

// PickHeader returns the first header that matches any candidate, trying the
// candidates in order.
func PickHeader(headers []string, candidates []string) (string, bool) {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[NormalizeHeader(h)] = i
	}
	for _, c := range candidates {
		if i, ok := idx[NormalizeHeader(c)]; ok {
			return headers[i], true
		}
	}
	return "", false
}

// Columns holds the literal header chosen for each logical column. Date is
// empty when the manifest has no date column.
type Columns struct {
	Name       string
	File       string
	Date       string
	Department string
}

func (c Columns) HasDate() bool {
	return c.Date != ""
}

func (c Columns) String() string {
	s := fmt.Sprintf("name:%s, file:%s, department:%s", c.Name, c.File, c.Department)
	if c.HasDate() {
		s += ", date:" + c.Date
	}
	return s
}

// ResolveColumns maps the logical columns onto headers. Name, file and
// department are required; date is optional.
func ResolveColumns(headers []string) (Columns, error) {
	var cols Columns
	var okName, okFile, okDept bool
	cols.Name, okName = PickHeader(headers, NameAliases)
	cols.File, okFile = PickHeader(headers, FileAliases)
	cols.Department, okDept = PickHeader(headers, DepartmentAliases)
	cols.Date, _ = PickHeader(headers, DateAliases)

	if !okName || !okFile || !okDept {
		return Columns{}, fmt.Errorf("%w; detected headers: %s", ErrMissingHeaders, strings.Join(headers, ", "))
	}
	return cols, nil
}

// Record is one manifest row read through resolved columns.
type Record struct {
	Name       string
	File       string
	Date       string
	Department string
}

func (c Columns) Record(raw RawRow) Record {
	rec := Record{
		Name:       raw[c.Name],
		File:       raw[c.File],
		Department: raw[c.Department],
	}
	if c.HasDate() {
		rec.Date = raw[c.Date]
	}
	return rec
}
