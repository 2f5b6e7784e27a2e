package domain

import "strings"

// DefaultDepartments is used when no department list is configured.
var DefaultDepartments = []string{
	"教務處",
	"學務處",
	"總務處",
	"輔導室",
	"圖書館",
	"人事室",
	"主計室",
}

// DepartmentSet is the closed list of department names a document may carry.
// Membership is an exact string comparison.
type DepartmentSet struct {
	names []string
	index map[string]struct{}
}

func NewDepartmentSet(names []string) DepartmentSet {
	set := DepartmentSet{
		names: make([]string, 0, len(names)),
		index: make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := set.index[n]; dup {
			continue
		}
		set.index[n] = struct{}{}
		set.names = append(set.names, n)
	}
	return set
}

func (s DepartmentSet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

func (s DepartmentSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s DepartmentSet) Len() int {
	return len(s.names)
}

func (s DepartmentSet) String() string {
	return strings.Join(s.names, ", ")
}
