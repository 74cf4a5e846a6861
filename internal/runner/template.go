package runner

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/google/uuid"
	v1 "github.com/infracollect/archivist/apis/v1"
	"github.com/infracollect/archivist/internal/engine"
)

const templateTag = "template"

// BuildVariables creates the variables available to ${VAR} references: the
// built-in JOB_* variables and every allowed environment variable. An allowed
// variable that is not set is an error.
func BuildVariables(job v1.BundleJob, allowedEnv []string) (map[string]string, error) {
	date := time.Now().UTC()
	variables := map[string]string{
		"JOB_NAME":         job.Metadata.Name,
		"JOB_ID":           uuid.NewString(),
		"JOB_DATE_ISO8601": date.Format(engine.ISO8601Basic),
		"JOB_DATE_RFC3339": date.Format(time.RFC3339),
	}

	var errs error
	for _, envName := range allowedEnv {
		val, ok := os.LookupEnv(envName)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", envName))
			continue
		}
		variables[envName] = val
	}

	if errs != nil {
		return nil, errs
	}

	return variables, nil
}

// ExpandTemplates expands ${VAR} references in place in the struct pointed
// to by in. Strings, *string and []string fields are only expanded when
// tagged `template` (and not `template:"-"`). map[string]string values are
// always expanded. Nested structs, pointers to structs and slices of them
// are walked. Every unknown variable is reported.
func ExpandTemplates[T any](in *T, variables map[string]string) error {
	if in == nil {
		return nil
	}

	x := expander{variables: variables}
	v := reflect.ValueOf(in).Elem()
	switch v.Kind() {
	case reflect.Struct:
		x.walkStruct(v)
	case reflect.Slice:
		x.walkSlice(v, true)
	default:
		return fmt.Errorf("ExpandTemplates expects *struct or *[]struct; got *%s", v.Type())
	}
	return x.errs
}

type expander struct {
	variables map[string]string
	errs      error
}

func (x *expander) expand(s string) string {
	expanded, err := Expand(s, x.variables)
	if err != nil {
		x.errs = errors.Join(x.errs, err)
		return s
	}
	return expanded
}

func (x *expander) walkStruct(v reflect.Value) {
	typ := v.Type()
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, ok := sf.Tag.Lookup(templateTag)
		x.walkField(v.Field(i), ok && tag != "-")
	}
}

func (x *expander) walkField(field reflect.Value, tagged bool) {
	switch field.Kind() {
	case reflect.String:
		if tagged {
			field.SetString(x.expand(field.String()))
		}
	case reflect.Ptr:
		if field.IsNil() {
			return
		}
		elem := field.Elem()
		switch elem.Kind() {
		case reflect.String:
			if tagged {
				// Copy so values shared with the caller are not modified.
				ptr := reflect.New(elem.Type())
				ptr.Elem().SetString(x.expand(elem.String()))
				field.Set(ptr)
			}
		case reflect.Struct:
			x.walkStruct(elem)
		}
	case reflect.Map:
		if field.IsNil() || field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
			return
		}
		expanded := make(map[string]string, field.Len())
		iter := field.MapRange()
		for iter.Next() {
			expanded[iter.Key().String()] = x.expand(iter.Value().String())
		}
		field.Set(reflect.ValueOf(expanded).Convert(field.Type()))
	case reflect.Struct:
		x.walkStruct(field)
	case reflect.Slice:
		x.walkSlice(field, tagged)
	}
}

func (x *expander) walkSlice(v reflect.Value, tagged bool) {
	if v.IsNil() {
		return
	}
	elem := v.Type().Elem()
	for i := range v.Len() {
		el := v.Index(i)
		switch {
		case elem.Kind() == reflect.String:
			if tagged {
				el.SetString(x.expand(el.String()))
			}
		case elem.Kind() == reflect.Struct:
			x.walkStruct(el)
		case elem.Kind() == reflect.Ptr && elem.Elem().Kind() == reflect.Struct:
			if !el.IsNil() {
				x.walkStruct(el.Elem())
			}
		}
	}
}

// Expand replaces ${VAR} references in value. Every reference to a variable
// missing from variables is reported.
func Expand(value string, variables map[string]string) (string, error) {
	var errs error

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		errs = errors.Join(errs, fmt.Errorf("environment variable %q is not in the allowed list", key))
		return ""
	})

	if errs != nil {
		return "", errs
	}

	return result, nil
}
