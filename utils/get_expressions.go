package utils

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
)

// GetExpressionFunctions defines functions usable in layout length expressions.
func GetExpressionFunctions() map[string]govaluate.ExpressionFunction {
	return map[string]govaluate.ExpressionFunction{
		// BMP pixel array size including row padding.
		"CalculatePaddedSize": func(args ...interface{}) (interface{}, error) {
			if len(args) != 3 {
				return nil, fmt.Errorf("CalculatePaddedSize expects 3 arguments (width, height, bitsPerPixel)")
			}
			nums, err := numericArgs("CalculatePaddedSize", args)
			if err != nil {
				return nil, err
			}
			width, height, bitsPerPixel := nums[0], nums[1], nums[2]

			bytesPerRow, err := bytesPerRow(width, bitsPerPixel)
			if err != nil {
				return nil, err
			}
			paddedRowSize := bytesPerRow + (4-(bytesPerRow%4))%4 // Standard BMP padding logic
			return float64(int(height) * paddedRowSize), nil     // Return as float64 for govaluate
		},
		// Filler bytes after each scan line.
		"RowPadding": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("RowPadding expects 2 arguments (width, bitsPerPixel)")
			}
			nums, err := numericArgs("RowPadding", args)
			if err != nil {
				return nil, err
			}
			bytesPerRow, err := bytesPerRow(nums[0], nums[1])
			if err != nil {
				return nil, err
			}
			return float64((4 - (bytesPerRow % 4)) % 4), nil
		},
	}
}

// govaluate hands every number over as float64.
func numericArgs(fn string, args []interface{}) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("arg %d must be numeric for %s, got %T", i+1, fn, a)
		}
		if v < 0 {
			return nil, fmt.Errorf("arg %d must be non-negative for %s, got %v", i+1, fn, v)
		}
		out[i] = v
	}
	return out, nil
}

func bytesPerRow(width, bitsPerPixel float64) (int, error) {
	if bitsPerPixel == 0 { // Avoid division by zero
		return 0, fmt.Errorf("bitsPerPixel cannot be zero")
	}
	bytesPerPixel := int(bitsPerPixel / 8)
	if bytesPerPixel <= 0 {
		return 0, fmt.Errorf("unsupported bitsPerPixel for simple calculation: %v", bitsPerPixel)
	}
	return int(width) * bytesPerPixel, nil
}

// IsValidLengthExpression rejects empty lengths and the "..." placeholder.
func IsValidLengthExpression(expr string) bool {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" || trimmed == "..." {
		return false // Empty or placeholder is invalid here
	}
	return true
}
