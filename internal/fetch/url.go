package fetch

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// Param is one query parameter. A nil Value, including a typed nil pointer,
// omits the parameter from the URL entirely.
type Param struct {
	Key   string
	Value any
}

// Int64 returns a pointer to v, for optional query values.
func Int64(v int64) *int64 {
	return &v
}

// BuildURL appends the non-nil params to base as key=value pairs joined with
// '&'. The '?' is only added when at least one param is present.
func BuildURL(base string, params ...Param) string {
	var b strings.Builder
	b.WriteString(base)

	started := false
	for _, p := range params {
		v, ok := deref(p.Value)
		if !ok {
			continue
		}
		if started {
			b.WriteByte('&')
		} else {
			b.WriteByte('?')
			started = true
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fmt.Sprint(v)))
	}
	return b.String()
}

func deref(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		return v, true
	}
	if rv.IsNil() {
		return nil, false
	}
	return rv.Elem().Interface(), true
}
