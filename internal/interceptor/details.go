package interceptor

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// formatDetails renders the extra arguments of a console call. Each value is
// formatted on its own and the results are separated by a blank line.
func formatDetails(values []any) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, formatValue(v))
	}
	return strings.Join(parts, "\n\n")
}

// formatValue never fails: a value that cannot be rendered falls back to its
// raw textual form.
func formatValue(v any) (out string) {
	defer func() {
		if recover() != nil {
			out = rawString(v)
		}
	}()

	switch val := v.(type) {
	case nil:
		return "<nil>"
	case error:
		return formatError(val)
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}

	if structured(v) {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return rawString(v)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// formatError renders "<Name>: <message>" followed by the stack when the error
// carries one beyond its message.
func formatError(err error) string {
	name := errorName(err)
	msg := err.Error()
	head := name + ": " + msg
	if verbose := fmt.Sprintf("%+v", err); verbose != msg {
		return head + "\n" + verbose
	}
	return head
}

// errorName is the first exported type name along the wrap chain, so a
// *fs.PathError reads "PathError". Anonymous errors are plain "Error".
func errorName(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		t := reflect.TypeOf(e)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Name() != "" && token.IsExported(t.Name()) {
			return t.Name()
		}
	}
	return "Error"
}

func structured(v any) bool {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}

func rawString(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("%#v", r)
		}
	}()
	return fmt.Sprint(v)
}

// messageText is the textual form of a console call's first argument.
func messageText(args []any) string {
	if len(args) == 0 {
		return ""
	}
	if s, ok := args[0].(string); ok {
		return s
	}
	return rawString(args[0])
}
