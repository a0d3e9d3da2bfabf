package graph

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/theapemachine/mcgraph/pkg/errors"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var keyReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_")

/*
SanitizeKey turns a free-form map key (a metric name, a requirement name)
into a property name. Spaces, dashes and dots become underscores; whatever
remains must be a plain identifier or the key is rejected.
*/
func SanitizeKey(key string) (string, error) {
	clean := keyReplacer.Replace(strings.TrimSpace(key))

	if !identifier.MatchString(clean) {
		return "", errors.Validation("property key %q is not allowed", key)
	}

	return clean, nil
}

/*
IsIdentifier reports whether name can be placed into query text as a
property name or relationship type.
*/
func IsIdentifier(name string) bool {
	return identifier.MatchString(name)
}

/*
FlattenProperties sanitizes every key of in and merges the result into
out. Keys listed in reserved, or keys that collide after sanitizing, are
rejected. Nil values are dropped and values must be scalars or lists of
scalars.
*/
func FlattenProperties(out, in map[string]any, reserved ...string) error {
	seen := make(map[string]string, len(in))

	for key, value := range in {
		clean, err := SanitizeKey(key)

		if err != nil {
			return err
		}

		for _, r := range reserved {
			if clean == r {
				return errors.Validation("property key %q is reserved", key)
			}
		}

		if previous, ok := seen[clean]; ok {
			return errors.Validation(
				"property keys %q and %q collide as %q", previous, key, clean,
			)
		}

		seen[clean] = key

		if value == nil {
			continue
		}

		if !IsPropertyValue(value) {
			return errors.Validation(
				"property %q must be a scalar or a list of scalars", key,
			)
		}

		out[clean] = value
	}

	return nil
}

/*
IsPropertyValue reports whether v can be stored as a node property.
*/
func IsPropertyValue(v any) bool {
	if v == nil {
		return false
	}

	if _, ok := v.(time.Time); ok {
		return true
	}

	rv := reflect.ValueOf(v)

	if isScalar(rv.Kind()) {
		return true
	}

	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}

	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)

		if elem.Kind() == reflect.Interface {
			if elem.IsNil() {
				return false
			}
			elem = elem.Elem()
		}

		if !isScalar(elem.Kind()) {
			return false
		}
	}

	return true
}

func isScalar(kind reflect.Kind) bool {
	switch kind {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}

	return false
}
