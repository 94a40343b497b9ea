// project/structs/structs.go
package structs

import (
	"fmt"
	"strconv"
)

// FileFormat describes the fixed-layout records at the start of a binary file.
// Order lists the keys of Structs in the order they appear in the file.
type FileFormat struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Order       []string          `yaml:"order"`
	Structs     map[string]Struct `yaml:"structs"`
	PixelData   *Region           `yaml:"pixelData,omitempty"`
}

// Region locates a variable-size block by expressions over header fields.
type Region struct {
	Offset string `yaml:"offset"`
	Length string `yaml:"length"`
}

type Struct struct {
	Fields []Field `yaml:"fields"`
}

type Field struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	// Length can be a number (as string) or an expression (e.g., "Width*Height*3")
	// It's only used for string and []byte fields.
	Length string `yaml:"length,omitempty"`
	// Expect is the value a conforming file must carry, if any.
	Expect string `yaml:"expect,omitempty"`
}

var fixedSizes = map[string]int{
	"uint8": 1, "int8": 1,
	"uint16": 2, "int16": 2,
	"uint32": 4, "int32": 4, "float32": 4,
	"uint64": 8, "int64": 8, "float64": 8,
}

// FixedSize returns the encoded width of a fixed-size type.
func FixedSize(typ string) (int, bool) {
	n, ok := fixedSizes[typ]
	return n, ok
}

// IsVariable reports whether the field's size comes from Length.
func (f *Field) IsVariable() bool {
	return f.Type == "string" || f.Type == "[]byte"
}

func (f *Field) GetLength() (int, error) {
	// If Length is empty, return 0
	if f.Length == "" {
		return 0, nil
	}

	// Convert Length to an integer
	length, err := strconv.Atoi(f.Length)
	if err != nil {
		return 0, fmt.Errorf("invalid length for field %s: %w", f.Name, err)
	}

	return length, nil
}

// Size returns the field's width in bytes when it can be known without
// evaluating an expression.
func (f *Field) Size() (int, error) {
	if n, ok := FixedSize(f.Type); ok {
		return n, nil
	}
	if !f.IsVariable() {
		return 0, fmt.Errorf("field %s has unsupported type %q", f.Name, f.Type)
	}
	return f.GetLength()
}
