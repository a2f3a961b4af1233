package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/medialert/medialert-engine/pkg/models"
)

var (
	timeType      = reflect.TypeOf(time.Time{})
	dateType      = reflect.TypeOf(models.Date{})
	rawType       = reflect.TypeOf(json.RawMessage(nil))
	numberType    = reflect.TypeOf(json.Number(""))
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// ErrReferenceCycle is returned when a payload refers back to itself through
// a pointer, map or slice.
var ErrReferenceCycle = errors.New("audit payload contains a reference cycle")

// Normalize converts an audit payload into canonical JSON.
//
// Maps, slices, structs (honoring json tags), json.RawMessage and []byte
// holding JSON are folded into one generic tree. time.Time values become
// RFC 3339 strings in UTC with nanosecond precision and models.Date values
// become YYYY-MM-DD. Object keys are sorted and HTML is not escaped, so
// Normalize(Normalize(x)) is byte-identical to Normalize(x).
//
// A nil payload, or one that encodes to JSON null, yields a nil RawMessage.
// Self-referencing payloads fail with ErrReferenceCycle.
func Normalize(v any) (json.RawMessage, error) {
	w := &walker{visiting: make(map[visit]struct{})}
	tree, err := w.toTree(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}
	return encodeCanonical(tree)
}

func encodeCanonical(tree any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("failed to encode audit payload: %w", err)
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// visit identifies a reference on the current path. Slices also carry their
// length since a subslice shares the backing array's address.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

// walker converts values to trees while tracking the references on the path
// from the root. A reference seen twice on the same path is a cycle; the same
// value reached through sibling fields is not.
type walker struct {
	visiting map[visit]struct{}
}

// enter records rv on the current path. The returned func removes it.
func (w *walker) enter(rv reflect.Value) (func(), error) {
	v := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		v.len = rv.Len()
	}
	if _, seen := w.visiting[v]; seen {
		return nil, fmt.Errorf("%w at %s", ErrReferenceCycle, rv.Type())
	}
	w.visiting[v] = struct{}{}
	return func() { delete(w.visiting, v) }, nil
}

func (w *walker) toTree(rv reflect.Value) (any, error) {
	if !rv.IsValid() {
		return nil, nil
	}

	switch rv.Type() {
	case timeType:
		return rv.Interface().(time.Time).UTC().Format(time.RFC3339Nano), nil
	case dateType:
		return rv.Interface().(models.Date).String(), nil
	case rawType:
		return decodeJSON(rv.Bytes())
	case numberType:
		return json.Number(rv.String()), nil
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return w.toTree(rv.Elem())
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		leave, err := w.enter(rv)
		if err != nil {
			return nil, err
		}
		defer leave()
		return w.toTree(rv.Elem())
	}

	if rv.Type().Implements(marshalerType) && rv.CanInterface() {
		data, err := rv.Interface().(json.Marshaler).MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", rv.Type(), err)
		}
		return decodeJSON(data)
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return json.Number(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("unsupported float value %v", f)
		}
		return json.Number(strconv.FormatFloat(f, 'g', -1, rv.Type().Bits())), nil
	case reflect.Map:
		return w.mapToTree(rv)
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return decodeJSON(rv.Bytes())
		}
		if rv.Len() == 0 {
			return []any{}, nil
		}
		leave, err := w.enter(rv)
		if err != nil {
			return nil, err
		}
		defer leave()
		return w.sliceToTree(rv)
	case reflect.Array:
		return w.sliceToTree(rv)
	case reflect.Struct:
		return w.structToTree(rv)
	default:
		return nil, fmt.Errorf("unsupported audit payload type %s", rv.Type())
	}
}

func (w *walker) mapToTree(rv reflect.Value) (any, error) {
	if rv.IsNil() {
		return nil, nil
	}
	leave, err := w.enter(rv)
	if err != nil {
		return nil, err
	}
	defer leave()

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return nil, err
		}
		val, err := w.toTree(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out[key] = val
	}
	return out, nil
}

func mapKey(k reflect.Value) (string, error) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), nil
	default:
		return "", fmt.Errorf("unsupported map key type %s", k.Type())
	}
}

func (w *walker) sliceToTree(rv reflect.Value) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		val, err := w.toTree(rv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}

// structToTree follows encoding/json field rules closely enough for row types:
// exported fields, json tag names, "-" and omitempty, and flattening of
// untagged exported embedded structs. Direct fields win over promoted ones.
func (w *walker) structToTree(rv reflect.Value) (any, error) {
	out := make(map[string]any)
	promoted := make(map[string]any)

	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := rv.Field(i)

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && ft != timeType && ft != dateType {
				if fv.Kind() == reflect.Pointer && fv.IsNil() {
					continue
				}
				embedded, err := w.toTree(fv)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", f.Name, err)
				}
				if m, ok := embedded.(map[string]any); ok {
					for k, v := range m {
						promoted[k] = v
					}
				}
				continue
			}
		}

		if name == "" {
			name = f.Name
		}
		if hasOption(opts, "omitempty") && isEmptyValue(fv) {
			continue
		}

		val, err := w.toTree(fv)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[name] = val
	}

	for k, v := range promoted {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out, nil
}

func hasOption(opts, want string) bool {
	for _, o := range strings.Split(opts, ",") {
		if o == want {
			return true
		}
	}
	return false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

// decodeJSON parses one JSON document into a generic tree, keeping numbers
// as json.Number so their textual form survives round trips.
func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON payload: trailing data")
	}
	return out, nil
}
