package endpoint

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// Unmarshal populates dst (a non-nil pointer to a struct) from the request.
//
// Supported struct tags:
//   - `body:""`: the raw request body; the field must be []byte or string.
//     At most one body field is allowed.
//   - `header:"Name"`: the first value of the named header.
//   - `query:"name"`: the first value of the named query parameter.
//
// Header and query values may be decoded into string, bool, and integer
// fields. Fields without a tag, or tagged "-", are left unchanged.
//
// A body exceeding a limit set with http.MaxBytesReader is reported as 413.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}
	root := v.Elem()
	if root.Kind() == reflect.Pointer {
		if root.IsNil() {
			root.Set(reflect.New(root.Type().Elem()))
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return Error(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must point to a struct"))
	}

	t := root.Type()
	bodySeen := false
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := root.Field(i)

		if _, ok := sf.Tag.Lookup("body"); ok && sf.Tag.Get("body") != "-" {
			if bodySeen {
				return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: multiple body fields"))
			}
			bodySeen = true
			if err := setBody(r, fv, sf.Name); err != nil {
				return err
			}
			continue
		}

		if name := sf.Tag.Get("header"); name != "" && name != "-" {
			if value := r.Header.Get(name); value != "" {
				if err := setScalar(fv, value); err != nil {
					return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: header %s: %w", name, err))
				}
			}
			continue
		}

		if name := sf.Tag.Get("query"); name != "" && name != "-" && r.URL != nil {
			if values, ok := r.URL.Query()[name]; ok && len(values) > 0 {
				if err := setScalar(fv, values[0]); err != nil {
					return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: query %s: %w", name, err))
				}
			}
		}
	}
	return nil
}

func setBody(r *http.Request, fv reflect.Value, field string) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Error(http.StatusRequestEntityTooLarge, "", err)
		}
		return Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body: %w", err))
	}
	switch {
	case fv.Kind() == reflect.String:
		fv.SetString(string(b))
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.Uint8:
		fv.SetBytes(b)
	default:
		return Error(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: body field %s must be []byte or string", field))
	}
	return nil
}

func setScalar(fv reflect.Value, value string) error {
	value = strings.TrimSpace(value)
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(n)
	default:
		return fmt.Errorf("unsupported field kind %v", fv.Kind())
	}
	return nil
}
