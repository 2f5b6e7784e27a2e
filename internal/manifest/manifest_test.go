package manifest

import (
	"errors"
	"strings"
	"testing"

	"github.com/njprem/regdocs/internal/domain"
)

var testDepartments = domain.NewDepartmentSet(domain.DefaultDepartments)

func testColumns() Columns {
	return Columns{Name: "法規名稱", File: "檔名", Department: "處室", Date: "最後更新日期"}
}

func TestBuildEntries(t *testing.T) {
	rows := []RawRow{
		{"法規名稱": " 學則 ", "檔名": ` rules\2024\academic `, "處室": "教務處", "最後更新日期": "2025/2/27"},
		{"法規名稱": "", "檔名": "policy-v2.PDF", "處室": " 總務處 ", "最後更新日期": ""},
		{"法規名稱": "skipped", "檔名": "  ", "處室": "not even checked", "最後更新日期": ""},
	}

	entries, err := Build(testColumns(), rows, testDepartments)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Filename != "rules/2024/academic.pdf" {
		t.Fatalf("unexpected filename %q", first.Filename)
	}
	if first.DisplayName != "學則" || first.Department != "教務處" || first.LastUpdate != "2025-02-27" {
		t.Fatalf("unexpected entry: %+v", first)
	}

	second := entries[1]
	if second.Filename != "policy-v2.PDF" || second.DisplayName != "policy-v2.PDF" {
		t.Fatalf("display name should fall back to filename: %+v", second)
	}
	if second.HasDate() {
		t.Fatalf("empty date cell should leave entry without date")
	}
}

func TestBuildInvalidDepartmentAborts(t *testing.T) {
	rows := []RawRow{
		{"法規名稱": "A", "檔名": "a", "處室": "教務處"},
		{"法規名稱": "B", "檔名": "b", "處室": "不存在處室"},
		{"法規名稱": "C", "檔名": "c", "處室": "還是不存在"},
	}

	entries, err := Build(testColumns(), rows, testDepartments)
	if !errors.Is(err, ErrInvalidDepartment) {
		t.Fatalf("expected ErrInvalidDepartment, got %v", err)
	}
	if entries != nil {
		t.Fatalf("no entries should be returned on abort")
	}
	msg := err.Error()
	if !strings.Contains(msg, "不存在處室") || strings.Contains(msg, "還是不存在") {
		t.Fatalf("error should name only the first offending value: %s", msg)
	}
	if !strings.Contains(msg, testDepartments.String()) {
		t.Fatalf("error should list valid departments: %s", msg)
	}
}

func TestBuildNoValidRows(t *testing.T) {
	rows := []RawRow{{"法規名稱": "A", "檔名": "", "處室": "教務處"}}

	_, err := Build(testColumns(), rows, testDepartments)
	if !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("expected ErrNoValidRows, got %v", err)
	}
}

func TestEnsurePDFExt(t *testing.T) {
	cases := map[string]string{
		"policy-v2":     "policy-v2.pdf",
		"policy-v2.PDF": "policy-v2.PDF",
		"policy.pdf":    "policy.pdf",
		"notes.docx":    "notes.docx.pdf",
	}
	for in, want := range cases {
		if got := EnsurePDFExt(in); got != want {
			t.Fatalf("EnsurePDFExt(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := map[string]string{
		"2025/2/27":   "2025-02-27",
		"2025-02-27":  "2025-02-27",
		"2025.2.7":    "2025-02-07",
		" 2025-2-7 ":  "2025-02-07",
		"27 Feb 2025": "27 Feb 2025",
		"114/02/27":   "114/02/27",
		"":            "",
		"   ":         "",
	}
	for in, want := range cases {
		if got := NormalizeDate(in); got != want {
			t.Fatalf("NormalizeDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDocNumber(t *testing.T) {
	cases := map[string]string{
		"rules/2024/academic.pdf": "academic",
		"policy-v2.PDF":           "policy-v2",
		"a.b.pdf":                 "a.b",
	}
	for in, want := range cases {
		if got := DocNumber(in); got != want {
			t.Fatalf("DocNumber(%q) = %q, want %q", in, got, want)
		}
	}
}
