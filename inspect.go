package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"BitmapCodec/bmp"
	"BitmapCodec/layout"
	"BitmapCodec/structs"

	"github.com/goccy/go-json"
)

// maxHeaderRead bounds how much of a file inspect hands to the layout parser.
const maxHeaderRead = 1 << 16

type inspection struct {
	File   string         `json:"file"`
	Layout string         `json:"layout"`
	Values []layout.Value `json:"values"`
	Report *layout.Report `json:"report"`
	// Codec is the bmp package's verdict on the header, "ok" or an error.
	Codec string `json:"codec"`
}

func runInspect(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("inspect")
	asJSON := fs.Bool("json", false, "Print JSON instead of a table")
	layoutPath := fs.String("layout", "", "YAML layout file, defaults to the built-in 24-bit BMP layout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := argCount(fs, 1); err != nil {
		return err
	}
	var ff *structs.FileFormat
	var err error
	if *layoutPath != "" {
		ff, err = layout.Load(*layoutPath)
	} else {
		ff, err = layout.Default()
	}
	if err != nil {
		return err
	}
	res, err := inspectFile(fs.Arg(0), ff, *layoutPath == "")
	if err != nil {
		return err
	}
	if *asJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(e.stdout, "%s\n", data)
		return err
	}
	return printInspection(e.stdout, res)
}

// inspectFile parses the header of path with ff. When crossCheck is set the
// layout values are also mapped onto a bmp.Header and compared with what the
// codec reads itself.
func inspectFile(path string, ff *structs.FileFormat, crossCheck bool) (*inspection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	head, err := io.ReadAll(io.LimitReader(f, maxHeaderRead))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	values, err := layout.Parse(ff, head)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	report := layout.Check(ff, values, st.Size())
	res := &inspection{File: path, Layout: ff.Name, Values: values, Report: report, Codec: "ok"}
	if !crossCheck {
		return res, nil
	}
	decoded, err := bmp.DecodeHeader(bytes.NewReader(head))
	if err != nil {
		res.Codec = err.Error()
		return res, nil
	}
	mapped, err := layout.ToHeader(values)
	if err != nil {
		return nil, err
	}
	if mapped != decoded {
		report.Problems = append(report.Problems, "layout and codec disagree on the header")
	}
	return res, nil
}

func printInspection(w io.Writer, res *inspection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (%s layout)\n", res.File, res.Layout)
	fmt.Fprintf(tw, "OFFSET\tFIELD\tTYPE\tVALUE\t\n")
	for i := range res.Values {
		v := &res.Values[i]
		mark := ""
		if v.Mismatch {
			mark = "want " + v.Expect
		}
		fmt.Fprintf(tw, "%d\t%s.%s\t%s\t%s\t%s\n", v.Offset, v.Struct, v.Name, v.Type, v.String(), mark)
	}
	r := res.Report
	fmt.Fprintf(tw, "\npixel data\t%d bytes at %d\n", r.PixelBytes, r.DataOffset)
	fmt.Fprintf(tw, "file size\t%d, expected %d\n", r.ActualSize, r.ExpectedSize)
	fmt.Fprintf(tw, "codec\t%s\n", res.Codec)
	for _, p := range r.Problems {
		fmt.Fprintf(tw, "problem\t%s\n", p)
	}
	return tw.Flush()
}
