package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Args is the canonical argument list passed to a handler: one slot per
// declared parameter, in declaration order. A slot is nil when an optional
// parameter was not supplied.
type Args []json.RawMessage

// Len returns the number of declared parameter slots.
func (a Args) Len() int {
	return len(a)
}

// Has reports whether slot i was supplied by the caller.
func (a Args) Has(i int) bool {
	return i >= 0 && i < len(a) && a[i] != nil
}

// Decode unmarshals slot i into v. An unsupplied slot leaves v unchanged.
// Decoding failures are reported as CodeInvalidParams.
func (a Args) Decode(i int, v interface{}) error {
	if !a.Has(i) {
		return nil
	}
	if err := json.Unmarshal(a[i], v); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("param %d: %v", i, err))
	}
	return nil
}

// Bind maps params onto the declared parameter list.
//
// Positional params bind by index; supplying more values than declared
// parameters is an error. Named params bind by name; keys that match no
// declared parameter are ignored. Absent params bind as an empty list.
// A null value counts as not supplied: it leaves an optional slot nil and is
// an error for a required parameter, as is a missing one. All errors are
// CodeInvalidParams.
func Bind(params []Param, p Params) (Args, error) {
	switch p.Kind {
	case ParamsAbsent:
		return bindPositional(params, nil)
	case ParamsPositional:
		return bindPositional(params, p.Positional)
	case ParamsNamed:
		return bindNamed(params, p.Named)
	default:
		return nil, NewInvalidParamsError("params must be an array or an object")
	}
}

func bindPositional(params []Param, values []json.RawMessage) (Args, error) {
	if len(values) > len(params) {
		return nil, NewInvalidParamsError(fmt.Sprintf("too many params: got %d, want at most %d", len(values), len(params)))
	}
	args := make(Args, len(params))
	for i, param := range params {
		if i < len(values) {
			if err := bindValue(args, i, param, values[i]); err != nil {
				return nil, err
			}
			continue
		}
		if param.Required {
			return nil, NewInvalidParamsError("missing param: " + param.Name)
		}
	}
	return args, nil
}

func bindNamed(params []Param, values map[string]json.RawMessage) (Args, error) {
	args := make(Args, len(params))
	for i, param := range params {
		if v, ok := values[param.Name]; ok {
			if err := bindValue(args, i, param, v); err != nil {
				return nil, err
			}
			continue
		}
		if param.Required {
			return nil, NewInvalidParamsError("missing param: " + param.Name)
		}
	}
	return args, nil
}

func bindValue(args Args, i int, param Param, v json.RawMessage) error {
	if isNull(v) {
		if param.Required {
			return NewInvalidParamsError("param " + param.Name + " must not be null")
		}
		return nil
	}
	args[i] = v
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
