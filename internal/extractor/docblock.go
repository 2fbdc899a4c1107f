package extractor

import (
	"regexp"
	"strings"

	"github.com/mvp-joe/phpintel/internal/symbols"
)

var (
	returnTagRe   = regexp.MustCompile(`@return\s+([^\s*]+)`)
	varTagRe      = regexp.MustCompile(`@var\s+([^\s*]+)`)
	paramTagRe    = regexp.MustCompile(`@param\s+([^\s*$]+)\s+(?:\.\.\.)?(\$` + identPattern + `)`)
	propertyTagRe = regexp.MustCompile(`@property(?:-read|-write)?\s+([^\s*$]+)\s+\$(` + identPattern + `)`)
	methodTagRe   = regexp.MustCompile(`@method\s+(static\s+)?(?:([^\s*(]+)\s+)?(` + identPattern + `)\(([^)]*)\)`)
	argNameRe     = regexp.MustCompile(`\$` + identPattern)
)

// Doc holds the annotations of one doc comment.
type Doc struct {
	Return string
	Var    string
	Params map[string]string // $name -> type

	Properties []symbols.Record // @property on a class doc
	Methods    []symbols.Record // @method on a class doc
}

// ParseDoc reads the annotations the resolver cares about. Member records
// derived from class-level tags carry no Class, Path or Offset; callers fill
// them in.
func ParseDoc(text string) Doc {
	var d Doc
	if text == "" {
		return d
	}
	if m := returnTagRe.FindStringSubmatch(text); m != nil {
		d.Return = m[1]
	}
	if m := varTagRe.FindStringSubmatch(text); m != nil {
		d.Var = m[1]
	}
	for _, m := range paramTagRe.FindAllStringSubmatch(text, -1) {
		if d.Params == nil {
			d.Params = make(map[string]string)
		}
		d.Params[m[2]] = m[1]
	}
	for _, m := range propertyTagRe.FindAllStringSubmatch(text, -1) {
		d.Properties = append(d.Properties, symbols.Record{
			Kind:       symbols.KindProperty,
			Name:       m[2],
			Returns:    symbols.NormalizeType(m[1]),
			Visibility: symbols.Public,
		})
	}
	for _, m := range methodTagRe.FindAllStringSubmatch(text, -1) {
		var args []symbols.Arg
		for _, name := range argNameRe.FindAllString(m[4], -1) {
			args = append(args, symbols.Arg{Name: name})
		}
		d.Methods = append(d.Methods, symbols.Record{
			Kind:       symbols.KindFunction,
			Name:       m[3],
			Args:       args,
			Returns:    symbols.NormalizeType(m[2]),
			Visibility: symbols.Public,
			Static:     strings.TrimSpace(m[1]) != "",
		})
	}
	return d
}
