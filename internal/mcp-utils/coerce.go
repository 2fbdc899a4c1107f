// Package mcputils binds loosely typed MCP tool arguments to Go structs.
package mcputils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ArgumentGetter is an interface for getting arguments from a request
type ArgumentGetter interface {
	GetArguments() map[string]interface{}
}

// BindArguments decodes the request arguments into target, matching fields
// by their json tags. Clients that send every value as a string ("42",
// "true") are accepted, and JSON numbers are narrowed to the field type.
func BindArguments[T any](request ArgumentGetter, target *T) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       scalarStringHook,
		Result:           target,
		TagName:          "json",
	})
	if err != nil {
		return fmt.Errorf("failed to create argument decoder: %w", err)
	}
	if err := decoder.Decode(request.GetArguments()); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// scalarStringHook parses strings headed for bool or numeric fields as JSON,
// so padded values like " 12 " still decode.
func scalarStringHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	str, ok := data.(string)
	if !ok || f.Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(str)
	if raw == "" {
		return data, nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch {
	case t.Kind() == reflect.Bool:
		var b bool
		if err := json.Unmarshal([]byte(raw), &b); err == nil {
			return b, nil
		}
	case t.Kind() >= reflect.Int && t.Kind() <= reflect.Float64:
		var n json.Number
		if err := json.Unmarshal([]byte(raw), &n); err == nil {
			return n, nil
		}
	}
	return data, nil
}
