package executor

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	language "github.com/hanpama/livebridge/internal/language"
	schema "github.com/hanpama/livebridge/internal/schema"
)

// coerceVariables applies the operation's variable definitions to the
// provided values. Missing variables with a default take it; missing
// variables without one stay absent.
func coerceVariables(sch *schema.Schema, op *language.OperationDefinition, given map[string]any) (map[string]any, language.ErrorList) {
	vars := make(map[string]any, len(op.VariableDefinitions))
	var errs language.ErrorList
	for _, def := range op.VariableDefinitions {
		fail := func(format string, args ...any) {
			e := &language.Error{Message: fmt.Sprintf(format, args...)}
			if def.Position != nil {
				e.Locations = []language.Location{{Line: def.Position.Line, Column: def.Position.Column}}
			}
			errs = append(errs, e)
		}
		t := schema.RefFromAST(def.Type)

		v, ok := given[def.Variable]
		if !ok {
			switch {
			case def.DefaultValue != nil:
				dv, err := def.DefaultValue.Value(nil)
				if err == nil {
					dv, err = coerceInput(sch, dv, t)
				}
				if err != nil {
					fail("Variable \"$%s\" has an invalid default value: %v", def.Variable, err)
					continue
				}
				vars[def.Variable] = dv
			case def.Type.NonNull:
				fail("Variable \"$%s\" of required type %s was not provided.", def.Variable, def.Type.String())
			}
			continue
		}
		if v == nil && def.Type.NonNull {
			fail("Variable \"$%s\" of non-null type %s must not be null.", def.Variable, def.Type.String())
			continue
		}
		cv, err := coerceInput(sch, v, t)
		if err != nil {
			fail("Variable \"$%s\" got invalid value: %v", def.Variable, err)
			continue
		}
		vars[def.Variable] = cv
	}
	return vars, errs
}

// arguments coerces the arguments of field node f against def. A variable
// that was not provided counts as an absent argument.
func (ex *execution) arguments(def *schema.Field, f *language.Field) (map[string]any, error) {
	args := make(map[string]any, len(def.Arguments))
	for _, ad := range def.Arguments {
		var (
			v       any
			present bool
		)
		if arg := f.Arguments.ForName(ad.Name); arg != nil && arg.Value != nil {
			if arg.Value.Kind == language.Variable {
				v, present = ex.vars[arg.Value.Raw]
			} else {
				lit, err := arg.Value.Value(ex.vars)
				if err != nil {
					return nil, fmt.Errorf("argument %q: %w", ad.Name, err)
				}
				v, present = lit, true
			}
		}
		if !present {
			if ad.DefaultValue != nil {
				v = ad.DefaultValue
			} else if ad.Type.IsNonNull() {
				return nil, fmt.Errorf("argument %q of required type %s was not provided", ad.Name, ad.Type.String())
			} else {
				continue
			}
		}
		cv, err := coerceInput(ex.schema, v, ad.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q has an invalid value: %w", ad.Name, err)
		}
		args[ad.Name] = cv
	}
	return args, nil
}

// coerceInput converts a decoded input value to the Go value resolvers see
// for type t. Numbers decoded from JSON arrive as float64 and literals as
// int64; both become int for Int.
func coerceInput(sch *schema.Schema, v any, t *schema.TypeRef) (any, error) {
	if t.IsNonNull() {
		if isNullish(v) {
			return nil, fmt.Errorf("expected non-null %s", t.String())
		}
		return coerceInput(sch, v, t.OfType)
	}
	if isNullish(v) {
		return nil, nil
	}
	if t.Kind == schema.TypeRefList {
		items, ok := asList(v)
		if !ok {
			elem, err := coerceInput(sch, v, t.OfType)
			if err != nil {
				return nil, err
			}
			return []any{elem}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			elem, err := coerceInput(sch, item, t.OfType)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = elem
		}
		return out, nil
	}

	named := sch.Types[t.Named]
	if named == nil {
		return nil, fmt.Errorf("unknown type %q", t.Named)
	}
	switch named.Kind {
	case schema.TypeKindScalar:
		return coerceScalar(named.Name, v)
	case schema.TypeKindEnum:
		s, ok := v.(string)
		if ok {
			for _, ev := range named.EnumValues {
				if ev.Name == s {
					return s, nil
				}
			}
		}
		return nil, fmt.Errorf("%v is not a value of enum %s", v, named.Name)
	case schema.TypeKindInputObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object for %s, got %T", named.Name, v)
		}
		out := make(map[string]any, len(obj))
		for _, field := range named.InputFields {
			fv, ok := obj[field.Name]
			if !ok {
				if field.DefaultValue != nil {
					fv = field.DefaultValue
				} else if field.Type.IsNonNull() {
					return nil, fmt.Errorf("field %s.%s of required type %s was not provided", named.Name, field.Name, field.Type.String())
				} else {
					continue
				}
			}
			cv, err := coerceInput(sch, fv, field.Type)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", named.Name, field.Name, err)
			}
			out[field.Name] = cv
		}
		for key := range obj {
			if !hasInputField(named, key) {
				return nil, fmt.Errorf("field %q is not defined by type %s", key, named.Name)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s is not an input type", named.Name)
}

func coerceScalar(name string, v any) (any, error) {
	switch name {
	case "Int":
		if n, ok := integral(v); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n), nil
		}
		return nil, fmt.Errorf("Int cannot represent %v", v)
	case "Float":
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		if n, ok := integral(v); ok {
			return float64(n), nil
		}
		return nil, fmt.Errorf("Float cannot represent %v", v)
	case "String":
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("String cannot represent %v", v)
	case "Boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent %v", v)
	case "ID":
		if s, ok := v.(string); ok {
			return s, nil
		}
		if n, ok := integral(v); ok {
			return strconv.FormatInt(n, 10), nil
		}
		return nil, fmt.Errorf("ID cannot represent %v", v)
	}
	// custom scalars are opaque
	return v, nil
}

func integral(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	}
	return 0, false
}

func hasInputField(t *schema.Type, name string) bool {
	for _, f := range t.InputFields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// isNullish reports nil and typed nil pointers, maps, slices and interfaces.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// asList returns the elements of any slice or array value.
func asList(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
