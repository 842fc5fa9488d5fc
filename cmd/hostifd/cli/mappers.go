package cli

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"

	"github.com/alecthomas/kong"
)

// Assignment is a NAME=VALUE attribute update.
type Assignment struct {
	Name  string
	Value string
}

// ParseAssignment parses NAME=VALUE. The value may be empty, which
// for handle attributes means the null handle.
func ParseAssignment(s string) (Assignment, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return Assignment{}, fmt.Errorf("invalid attribute %q: want NAME=VALUE", s)
	}
	return Assignment{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}, nil
}

func assignmentMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("attribute", &s); err != nil {
			return err
		}
		a, err := ParseAssignment(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(a))
		return nil
	}
}

// textMapper maps a flag or argument through the type's UnmarshalText,
// so enums accept their names and handles their oid form.
func textMapper[T any, PT interface {
	*T
	encoding.TextUnmarshaler
}](name string) kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto(name, &s); err != nil {
			return err
		}
		var v T
		if err := PT(&v).UnmarshalText([]byte(s)); err != nil {
			return err
		}
		target.Set(reflect.ValueOf(v))
		return nil
	}
}
