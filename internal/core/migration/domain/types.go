package domain

import (
	"regexp"
	"strconv"
	"strings"
)

var typeArgs = regexp.MustCompile(`^([a-z][a-z0-9 _]*?)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?(\s+unsigned)?$`)

// integer widths, shared across dialect spellings.
var integerRank = map[string]int{
	"tinyint":   1,
	"smallint":  2,
	"int2":      2,
	"mediumint": 3,
	"int":       4,
	"integer":   4,
	"int4":      4,
	"bigint":    8,
	"int8":      8,
}

var textual = map[string]bool{
	"varchar":           true,
	"character varying": true,
	"char":              true,
	"character":         true,
	"bpchar":            true,
}

var unbounded = map[string]bool{
	"text":       true,
	"mediumtext": true,
	"longtext":   true,
}

type parsedType struct {
	base      string
	length    int
	scale     int
	hasLength bool
	unsigned  bool
}

func parseType(t string) (parsedType, bool) {
	m := typeArgs.FindStringSubmatch(strings.ToLower(strings.TrimSpace(t)))
	if m == nil {
		return parsedType{}, false
	}
	p := parsedType{base: strings.TrimSpace(m[1]), unsigned: m[4] != ""}
	if m[2] != "" {
		p.length, _ = strconv.Atoi(m[2])
		p.hasLength = true
	}
	if m[3] != "" {
		p.scale, _ = strconv.Atoi(m[3])
	}
	return p, true
}

// IsWidening reports whether converting a column from one type to another can never lose data.
// Unknown conversions are treated as narrowing.
func IsWidening(from, to string) bool {
	if strings.EqualFold(strings.TrimSpace(from), strings.TrimSpace(to)) {
		return true
	}
	f, ok := parseType(from)
	if !ok {
		return false
	}
	t, ok := parseType(to)
	if !ok {
		return false
	}

	if fr, ok := integerRank[f.base]; ok {
		if tr, ok := integerRank[t.base]; ok {
			if f.unsigned && !t.unsigned {
				return tr > fr
			}
			if !f.unsigned && t.unsigned {
				return false
			}
			return tr >= fr
		}
		if t.base == "numeric" || t.base == "decimal" {
			return !t.hasLength || t.length-t.scale >= 20
		}
		return false
	}

	if textual[f.base] {
		if unbounded[t.base] {
			return true
		}
		if textual[t.base] {
			if !t.hasLength {
				return t.base != "char" && t.base != "character" && t.base != "bpchar"
			}
			return f.hasLength && t.length >= f.length
		}
		return false
	}

	switch f.base {
	case "real", "float4", "float":
		return t.base == "double precision" || t.base == "float8" || t.base == "double"
	case "numeric", "decimal":
		if t.base != "numeric" && t.base != "decimal" {
			return false
		}
		if !t.hasLength {
			return true
		}
		if !f.hasLength {
			return false
		}
		return t.scale >= f.scale && t.length-t.scale >= f.length-f.scale
	case "text":
		return unbounded[t.base]
	case "mediumtext":
		return t.base == "mediumtext" || t.base == "longtext"
	case "timestamp", "timestamp without time zone":
		return t.base == "timestamp with time zone" || t.base == "timestamptz"
	}
	return false
}
