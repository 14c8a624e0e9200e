package request

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
)

// BuildURI joins base, the API version segment and the expanded path
// template, then appends the query string. The version parameter always
// comes first; the remaining parameters follow the order of names and are
// only written when defined.
func BuildURI(base, apiVersion, template string, path map[string]string, names []string, query map[string]interface{}, versionDate string) (string, error) {
	p, err := ExpandPath(template, path)
	if err != nil {
		return "", err
	}
	q, err := Query(names, query, versionDate)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(base, "/") + "/" + strings.Trim(apiVersion, "/") + p + "?" + q, nil
}

// ExpandPath replaces every {name} placeholder in template with the matching
// value from params. Values are inserted as given.
func ExpandPath(template string, params map[string]string) (string, error) {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", errordefs.InvalidParameter("", template, "unterminated placeholder")
		}
		name := rest[open+1 : open+end]
		v := params[name]
		if v == "" {
			return "", errordefs.MissingParameter("", name)
		}
		b.WriteString(rest[:open])
		b.WriteString(v)
		rest = rest[open+end+1:]
	}
}

// Placeholders lists the placeholder names of template, in order.
func Placeholders(template string) []string {
	var out []string
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return out
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return out
		}
		out = append(out, rest[open+1:open+end])
		rest = rest[open+end+1:]
	}
}

// Query encodes version=versionDate followed by the defined values among
// names. Values not named in names are rejected.
func Query(names []string, values map[string]interface{}, versionDate string) (string, error) {
	declared := make(map[string]bool, len(names))
	for _, n := range names {
		declared[n] = true
	}
	for k := range values {
		if !declared[k] {
			return "", errordefs.InvalidParameter("", k, "not a query parameter of this operation")
		}
	}

	var b strings.Builder
	b.WriteString("version=")
	b.WriteString(Escape(versionDate))
	for _, n := range names {
		s, ok, err := format(values[n])
		if err != nil {
			return "", errordefs.InvalidParameter("", n, err.Error())
		}
		if !ok {
			continue
		}
		b.WriteByte('&')
		b.WriteString(Escape(n))
		b.WriteByte('=')
		b.WriteString(Escape(s))
	}
	return b.String(), nil
}

// Escape percent-encodes s for use in a query string. Spaces become %20.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// format renders a query value. ok is false when the value is absent.
func format(v interface{}) (s string, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, x != "", nil
	case *string:
		if x == nil {
			return "", false, nil
		}
		return *x, true, nil
	case int:
		return strconv.Itoa(x), true, nil
	case *int:
		if x == nil {
			return "", false, nil
		}
		return strconv.Itoa(*x), true, nil
	case bool:
		return strconv.FormatBool(x), true, nil
	case *bool:
		if x == nil {
			return "", false, nil
		}
		return strconv.FormatBool(*x), true, nil
	case []string:
		if len(x) == 0 {
			return "", false, nil
		}
		return strings.Join(x, ","), true, nil
	default:
		return "", false, fmt.Errorf("unsupported value of type %T", v)
	}
}
