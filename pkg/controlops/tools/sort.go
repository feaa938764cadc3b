package tools

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Subash107/control-ops-local1/pkg/controlops/apierr"
)

// MaxSortKeys is the maximum number of explicit sort keys
const MaxSortKeys = 3

// Sortable columns
const (
	SortName      = "name"
	SortCategory  = "category"
	SortCreatedAt = "created_at"
)

var sortFields = map[string]bool{SortName: true, SortCategory: true, SortCreatedAt: true}

// SortKey orders by one column
type SortKey struct {
	Field string
	Desc  bool
}

// SortSpec is applied left to right; id DESC always breaks remaining ties
type SortSpec []SortKey

// DefaultSort is used when no sort is requested
var DefaultSort = SortSpec{{Field: SortCreatedAt, Desc: true}}

// ParseSort parses "field[:dir],..." where dir defaults to asc.
// An empty or blank value yields a nil spec.
func ParseSort(s string) (SortSpec, error) {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	if len(parts) > MaxSortKeys {
		return nil, apierr.Invalid("sort", "sort supports at most %d fields", MaxSortKeys)
	}

	spec := make(SortSpec, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		field, dir, hasDir := strings.Cut(p, ":")
		field = strings.ToLower(strings.TrimSpace(field))
		dir = strings.ToLower(strings.TrimSpace(dir))
		if !hasDir {
			dir = "asc"
		}

		if !sortFields[field] {
			return nil, apierr.Invalid("sort", "invalid sort field %q, allowed: category, created_at, name", field)
		}
		if seen[field] {
			return nil, apierr.Invalid("sort", "duplicate sort field %q", field)
		}
		seen[field] = true

		desc, err := parseDirection("sort", dir)
		if err != nil {
			return nil, err
		}
		spec = append(spec, SortKey{Field: field, Desc: desc})
	}
	return spec, nil
}

// SingleSort builds a one-key spec from the sort_by and sort_dir parameters
func SingleSort(field, dir string) (SortSpec, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		field = SortCreatedAt
	}
	if !sortFields[field] {
		return nil, apierr.Invalid("sort_by", "invalid sort field %q, allowed: category, created_at, name", field)
	}
	dir = strings.ToLower(strings.TrimSpace(dir))
	if dir == "" {
		dir = "desc"
	}
	desc, err := parseDirection("sort_dir", dir)
	if err != nil {
		return nil, err
	}
	return SortSpec{{Field: field, Desc: desc}}, nil
}

func parseDirection(param, dir string) (bool, error) {
	switch dir {
	case "asc":
		return false, nil
	case "desc":
		return true, nil
	default:
		return false, apierr.Invalid(param, "invalid sort direction %q, allowed: asc, desc", dir)
	}
}

// Scope appends the ORDER BY clauses, including the id tiebreak
func (s SortSpec) Scope(db *gorm.DB) *gorm.DB {
	for _, k := range s {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Table: "tools", Name: k.Field}, Desc: k.Desc})
	}
	return db.Order(clause.OrderByColumn{Column: clause.Column{Table: "tools", Name: "id"}, Desc: true})
}
