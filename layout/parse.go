package layout

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"BitmapCodec/bmp"
	"BitmapCodec/structs"
	"BitmapCodec/utils"

	"github.com/Knetic/govaluate"
	"github.com/mitchellh/mapstructure"
)

// Value is one decoded header field.
type Value struct {
	Struct   string `json:"struct"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Offset   int    `json:"offset"`
	Size     int    `json:"size"`
	Value    any    `json:"value"`
	Expect   string `json:"expect,omitempty"`
	Mismatch bool   `json:"mismatch,omitempty"`
}

// String formats v.Value for display. Byte fields print as quoted text.
func (v *Value) String() string {
	switch x := v.Value.(type) {
	case []byte:
		return strconv.Quote(string(x))
	default:
		return fmt.Sprint(x)
	}
}

// Parse decodes the fields of ff from the start of data, little-endian.
func Parse(ff *structs.FileFormat, data []byte) ([]Value, error) {
	var values []Value
	off := 0
	for _, structName := range ff.Order {
		for _, field := range ff.Structs[structName].Fields {
			size, err := fieldSize(&field, values)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", structName, field.Name, err)
			}
			if off+size > len(data) {
				return nil, fmt.Errorf("%s.%s at offset %d needs %d bytes, file has %d: %w",
					structName, field.Name, off, size, len(data), bmp.ErrTruncated)
			}
			v := Value{
				Struct: structName,
				Name:   field.Name,
				Type:   field.Type,
				Offset: off,
				Size:   size,
				Value:  decodeField(field.Type, data[off:off+size]),
				Expect: field.Expect,
			}
			v.Mismatch = field.Expect != "" && !matches(&v)
			values = append(values, v)
			off += size
		}
	}
	return values, nil
}

func fieldSize(field *structs.Field, parsed []Value) (int, error) {
	if n, err := field.Size(); err == nil {
		return n, nil
	} else if !field.IsVariable() {
		return 0, err
	}
	n, err := Evaluate(field.Length, parsed)
	if err != nil {
		return 0, err
	}
	if n < 0 || n != math.Trunc(n) {
		return 0, fmt.Errorf("length expression '%s' gave %v", field.Length, n)
	}
	return int(n), nil
}

func decodeField(typ string, b []byte) any {
	le := binary.LittleEndian
	switch typ {
	case "uint8":
		return b[0]
	case "int8":
		return int8(b[0])
	case "uint16":
		return le.Uint16(b)
	case "int16":
		return int16(le.Uint16(b))
	case "uint32":
		return le.Uint32(b)
	case "int32":
		return int32(le.Uint32(b))
	case "uint64":
		return le.Uint64(b)
	case "int64":
		return int64(le.Uint64(b))
	case "float32":
		return math.Float32frombits(le.Uint32(b))
	case "float64":
		return math.Float64frombits(le.Uint64(b))
	case "string":
		return string(b)
	default:
		return append([]byte(nil), b...)
	}
}

func matches(v *Value) bool {
	switch x := v.Value.(type) {
	case []byte:
		return string(x) == v.Expect
	case string:
		return x == v.Expect
	}
	want, err := strconv.ParseFloat(v.Expect, 64)
	if err != nil {
		return false
	}
	got, ok := toFloat(v.Value)
	return ok && got == want
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case uint8:
		return float64(x), true
	case int8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// Params returns the values keyed by field name in the form govaluate expects:
// numbers as float64, byte fields as strings.
func Params(values []Value) map[string]interface{} {
	params := make(map[string]interface{}, len(values))
	for _, v := range values {
		if f, ok := toFloat(v.Value); ok {
			params[v.Name] = f
		} else if b, ok := v.Value.([]byte); ok {
			params[v.Name] = string(b)
		} else {
			params[v.Name] = v.Value
		}
	}
	return params
}

// Evaluate computes a numeric expression over previously parsed fields.
func Evaluate(expr string, values []Value) (float64, error) {
	if n, err := strconv.Atoi(expr); err == nil {
		return float64(n), nil
	}
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, utils.GetExpressionFunctions())
	if err != nil {
		return 0, fmt.Errorf("parsing '%s': %w", expr, err)
	}
	res, err := e.Evaluate(Params(values))
	if err != nil {
		return 0, fmt.Errorf("evaluating '%s': %w", expr, err)
	}
	f, ok := res.(float64)
	if !ok {
		return 0, fmt.Errorf("expression '%s' is not numeric: %v", expr, res)
	}
	return f, nil
}

// Report summarizes how the header's claims compare with the file.
type Report struct {
	DataOffset     int64    `json:"data_offset"`
	PixelBytes     int64    `json:"pixel_bytes"`
	ExpectedSize   int64    `json:"expected_size"`
	HeaderFileSize int64    `json:"header_file_size"`
	ActualSize     int64    `json:"actual_size"`
	Problems       []string `json:"problems,omitempty"`
}

// OK reports whether no problems were found.
func (r *Report) OK() bool { return len(r.Problems) == 0 }

// Check compares the values parsed by Parse with the real file length.
// The header's FileSize field is compared when the layout has one. Pixel data
// expressions that cannot be evaluated for these values are reported as
// problems.
func Check(ff *structs.FileFormat, values []Value, fileLen int64) *Report {
	r := &Report{ActualSize: fileLen, HeaderFileSize: -1}
	for i := range values {
		v := &values[i]
		if v.Mismatch {
			r.Problems = append(r.Problems, fmt.Sprintf("%s.%s is %s, want %s", v.Struct, v.Name, v.String(), v.Expect))
		}
		if v.Name == "FileSize" {
			if f, ok := toFloat(v.Value); ok {
				r.HeaderFileSize = int64(f)
			}
		}
	}
	if ff.PixelData == nil {
		return r
	}
	off, err := Evaluate(ff.PixelData.Offset, values)
	if err != nil {
		r.Problems = append(r.Problems, "pixel data offset: "+err.Error())
		return r
	}
	n, err := Evaluate(ff.PixelData.Length, values)
	if err != nil {
		r.Problems = append(r.Problems, "pixel data length: "+err.Error())
		return r
	}
	r.DataOffset, r.PixelBytes = int64(off), int64(n)
	r.ExpectedSize = r.DataOffset + r.PixelBytes
	if r.HeaderFileSize >= 0 && r.HeaderFileSize != r.ExpectedSize {
		r.Problems = append(r.Problems, fmt.Sprintf("header file size %d, layout computes %d", r.HeaderFileSize, r.ExpectedSize))
	}
	switch {
	case fileLen < r.ExpectedSize:
		r.Problems = append(r.Problems, fmt.Sprintf("file is %d bytes short", r.ExpectedSize-fileLen))
	case fileLen > r.ExpectedSize:
		r.Problems = append(r.Problems, fmt.Sprintf("%d trailing bytes after pixel data", fileLen-r.ExpectedSize))
	}
	return r
}

// ToHeader maps parsed values onto a bmp.Header by field name.
func ToHeader(values []Value) (bmp.Header, error) {
	fields := make(map[string]interface{}, len(values))
	for _, v := range values {
		fields[v.Name] = v.Value
	}
	var h bmp.Header
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &h})
	if err != nil {
		return bmp.Header{}, err
	}
	if err := dec.Decode(fields); err != nil {
		return bmp.Header{}, fmt.Errorf("mapping layout values onto bmp.Header: %w", err)
	}
	return h, nil
}
