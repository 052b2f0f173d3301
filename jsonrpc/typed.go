package jsonrpc

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// TypedHandler is a handler together with the parameter list and result
// description derived from its Go types. Build one with Func.
type TypedHandler struct {
	Params  []Param
	Result  *ResultSpec
	Handler HandlerFunc
	err     error
}

// Func adapts fn into a TypedHandler.
//
// P must be a struct. Its exported fields are the method's parameters, in
// declaration order, which is also the order used for positional params.
// The parameter name is the json tag name, or the field name if untagged.
// Fields tagged `json:"-"` are skipped.
//
// A parameter is optional if its field is a pointer or carries the tag
// `jsonrpc:"optional"`. A `summary:"..."` tag documents the parameter.
//
// Use struct{} for methods without parameters.
func Func[P, R any](fn func(ctx context.Context, params P) (R, error)) TypedHandler {
	t := reflect.TypeFor[P]()
	if t.Kind() != reflect.Struct {
		return TypedHandler{err: fmt.Errorf("%w: params must be a struct, got %v", ErrInvalidHandler, t)}
	}

	params, fields := paramFields(t)

	return TypedHandler{
		Params: params,
		Result: &ResultSpec{Name: "result", Schema: reflectSchema(reflect.TypeFor[R]())},
		Handler: func(ctx context.Context, args Args) (interface{}, error) {
			var p P
			v := reflect.ValueOf(&p).Elem()
			for i, idx := range fields {
				if err := args.Decode(i, v.Field(idx).Addr().Interface()); err != nil {
					return nil, err
				}
			}
			return fn(ctx, p)
		},
	}
}

// paramFields extracts parameter declarations from a params struct, along with
// the struct field index backing each one.
func paramFields(t reflect.Type) ([]Param, []int) {
	params := make([]Param, 0, t.NumField())
	fields := make([]int, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			tagName := strings.Split(jsonTag, ",")[0]
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		optional := field.Type.Kind() == reflect.Pointer || field.Tag.Get("jsonrpc") == "optional"
		params = append(params, Param{
			Name:     name,
			Summary:  field.Tag.Get("summary"),
			Required: !optional,
			Schema:   reflectSchema(field.Type),
		})
		fields = append(fields, i)
	}
	return params, fields
}

var schemaReflector = &jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
}

func reflectSchema(t reflect.Type) *jsonschema.Schema {
	if t == nil {
		return &jsonschema.Schema{}
	}
	return schemaReflector.ReflectFromType(t)
}
