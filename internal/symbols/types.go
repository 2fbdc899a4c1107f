// Package symbols defines the declaration records produced by the extractor
// and stored in the project index.
package symbols

import "strings"

// Kind is the syntactic kind of a declaration.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function"
	KindProperty Kind = "property"
	KindConstant Kind = "constant"
)

// Visibility of a class member.
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

// Class flavors.
const (
	FlavorClass     = "class"
	FlavorInterface = "interface"
	FlavorTrait     = "trait"
	FlavorEnum      = "enum"
)

// Arg is one declared function parameter.
type Arg struct {
	Name string `json:"name"` // includes the leading $
	Type string `json:"type,omitempty"`
}

// Record is one declaration found in one file.
type Record struct {
	Kind       Kind       `json:"kind"`
	Name       string     `json:"name"`
	Class      string     `json:"class,omitempty"` // declaring class, empty for free functions
	Flavor     string     `json:"flavor,omitempty"`
	Extends    []string   `json:"extends,omitempty"`
	Implements []string   `json:"implements,omitempty"`
	Traits     []string   `json:"traits,omitempty"`
	Args       []Arg      `json:"args,omitempty"`
	Returns    string     `json:"returns,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
	Static     bool       `json:"static,omitempty"`
	Path       string     `json:"path"`
	Offset     int        `json:"offset"`
	End        int        `json:"end,omitempty"`
}

// IsMember reports whether the record is declared inside a class.
func (r Record) IsMember() bool {
	return r.Class != "" && r.Kind != KindClass
}

// Encloses reports whether offset falls within the record's body.
func (r Record) Encloses(offset int) bool {
	return r.End > r.Offset && offset >= r.Offset && offset <= r.End
}

// ClassNames returns the distinct class names declared by records, in
// declaration order.
func ClassNames(records []Record) []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range records {
		if r.Kind != KindClass || seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}
	return names
}

// NormalizeType reduces a PHP type expression to a bare class name.
// Generic arguments, nullable markers, leading backslashes, namespaces and
// null union members are dropped; the first remaining union member wins.
// Array suffixes are kept so that "Foo[]" never resolves to "Foo".
func NormalizeType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	t = strings.TrimPrefix(t, "?")
	if i := strings.IndexByte(t, '<'); i > 0 {
		t = t[:i]
	}
	for _, part := range strings.FieldsFunc(t, func(r rune) bool { return r == '|' || r == '&' }) {
		part = strings.Trim(strings.TrimSpace(part), "()")
		if part == "" || strings.EqualFold(part, "null") {
			continue
		}
		return ShortName(part)
	}
	return ""
}

// ShortName strips the namespace from a qualified class name.
func ShortName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "\\")
	if i := strings.LastIndex(name, "\\"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// IsSelfType reports whether a declared type refers back to the receiver.
func IsSelfType(t string) bool {
	switch strings.ToLower(t) {
	case "self", "static", "$this":
		return true
	}
	return false
}
