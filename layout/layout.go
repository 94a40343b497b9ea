// Package layout interprets a YAML description of a binary file header.
//
// The description lists named, typed fields in file order. Parse walks a byte
// slice with it, and Check evaluates the pixel data region expressions against
// the parsed values to see whether the file is as long as its header claims.
package layout

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"BitmapCodec/structs"
	"BitmapCodec/utils"

	"github.com/Knetic/govaluate"
	"gopkg.in/yaml.v2"
)

//go:embed bmp24.yml
var bmp24 []byte

// Default returns the built-in description of a classic 24-bit BMP header.
func Default() (*structs.FileFormat, error) {
	return parse(bmp24, "bmp24.yml")
}

// Load reads and validates a layout description from path.
func Load(path string) (*structs.FileFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file '%s': %w", path, err)
	}
	return parse(data, path)
}

func parse(data []byte, name string) (*structs.FileFormat, error) {
	var ff structs.FileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		var yamlErr *yaml.TypeError
		if errors.As(err, &yamlErr) {
			for _, msg := range yamlErr.Errors {
				slog.Error("yaml unmarshal", "file", name, "msg", msg)
			}
		}
		return nil, fmt.Errorf("error unmarshaling YAML from %s: %w", name, err)
	}
	if err := Validate(&ff); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &ff, nil
}

// Validate checks that every struct in Order exists, every field has a
// usable type and length, and the pixel data expressions parse.
func Validate(ff *structs.FileFormat) error {
	var problems []string
	if len(ff.Order) == 0 {
		problems = append(problems, "order is empty")
	}
	seen := map[string]string{}
	for _, structName := range ff.Order {
		structDef, ok := ff.Structs[structName]
		if !ok {
			problems = append(problems, fmt.Sprintf("order names unknown struct '%s'", structName))
			continue
		}
		for _, field := range structDef.Fields {
			if prev, dup := seen[field.Name]; dup {
				problems = append(problems, fmt.Sprintf("field '%s' in struct '%s' already defined in '%s'", field.Name, structName, prev))
			}
			seen[field.Name] = structName
			problems = append(problems, validateField(structName, &field)...)
		}
	}
	for structName := range ff.Structs {
		if !slices.Contains(ff.Order, structName) {
			slog.Warn("struct not listed in order, it will be ignored", "struct", structName)
		}
	}
	if ff.PixelData != nil {
		for _, expr := range []string{ff.PixelData.Offset, ff.PixelData.Length} {
			if !utils.IsValidLengthExpression(expr) {
				problems = append(problems, fmt.Sprintf("pixelData expression '%s' is empty", expr))
				continue
			}
			if _, err := govaluate.NewEvaluableExpressionWithFunctions(expr, utils.GetExpressionFunctions()); err != nil {
				problems = append(problems, fmt.Sprintf("pixelData expression '%s': %v", expr, err))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("found %d validation error(s): %s", len(problems), strings.Join(problems, "; "))
	}
	return nil
}

func validateField(structName string, field *structs.Field) []string {
	if strings.TrimSpace(field.Type) == "" {
		return []string{fmt.Sprintf("struct '%s': field '%s' is missing a 'type'", structName, field.Name)}
	}
	if _, ok := structs.FixedSize(field.Type); ok {
		if field.Length != "" {
			slog.Warn("fixed-size field has an unnecessary length, it will be ignored",
				"struct", structName, "field", field.Name, "type", field.Type, "length", field.Length)
		}
		if field.Expect != "" {
			if _, err := strconv.ParseFloat(field.Expect, 64); err != nil {
				return []string{fmt.Sprintf("struct '%s': field '%s' expects non-numeric '%s'", structName, field.Name, field.Expect)}
			}
		}
		return nil
	}
	if !field.IsVariable() {
		return []string{fmt.Sprintf("struct '%s': field '%s' has unsupported type '%s'", structName, field.Name, field.Type)}
	}
	if !utils.IsValidLengthExpression(field.Length) {
		return []string{fmt.Sprintf("struct '%s': field '%s' of type '%s' requires a 'length'", structName, field.Name, field.Type)}
	}
	if n, err := strconv.Atoi(field.Length); err == nil {
		if n <= 0 {
			return []string{fmt.Sprintf("struct '%s': field '%s' has non-positive length %d", structName, field.Name, n)}
		}
		return nil
	}
	if _, err := govaluate.NewEvaluableExpressionWithFunctions(field.Length, utils.GetExpressionFunctions()); err != nil {
		return []string{fmt.Sprintf("struct '%s': field '%s' has invalid length expression '%s': %v", structName, field.Name, field.Length, err)}
	}
	return nil
}
