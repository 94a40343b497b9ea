package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"BitmapCodec/bmp"
	"BitmapCodec/config"

	"github.com/goccy/go-json"
	gobmp "github.com/sergeymakinen/go-bmp"
)

// runCmd runs bmptool with a configuration file that does not exist, so
// every setting is at its default.
func runCmd(t *testing.T, stdin string, interactive bool, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	args = append([]string{"-config", filepath.Join(t.TempDir(), config.DefaultPath)}, args...)
	err := run(context.Background(), args, strings.NewReader(stdin), &out, interactive)
	return out.String(), err
}

func genFile(t *testing.T, path string, args ...string) {
	t.Helper()
	if _, err := runCmd(t, "", false, append([]string{"gen", "-o", path}, args...)...); err != nil {
		t.Fatalf("gen %s: %v", path, err)
	}
}

// TestGenWriteReadVerify writes a file with gen and then reads it back for
// verification.
func TestGenWriteReadVerify(t *testing.T) {
	testFilename := filepath.Join(t.TempDir(), "test_write_read.bmp")

	log.Println("Phase 1: Writing test file", testFilename)
	genFile(t, testFilename, "-w", "2", "-h", "2", "-color", "ff0000")

	log.Println("Phase 2: Reading test file", testFilename)
	data, err := os.ReadFile(testFilename)
	if err != nil {
		t.Fatalf("error reading '%s': %v", testFilename, err)
	}
	if len(data) != 70 {
		t.Fatalf("file is %d bytes, want 70", len(data))
	}
	readHeader, err := bmp.DecodeHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Read phase failed: %v", err)
	}
	readGrid, err := bmp.Unmarshal(data)
	if err != nil {
		t.Fatalf("Read phase failed: %v", err)
	}

	log.Println("Phase 3: Verifying data...")
	originalHeader, err := bmp.DefaultEncoder.NewHeader(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(originalHeader, readHeader) {
		t.Errorf("Verification FAILED: Headers do not match.\nOriginal: %+v\nRead:     %+v", originalHeader, readHeader)
	}
	red := bmp.Pixel{R: 255}
	if want := (bmp.Grid{{red, red}, {red, red}}); !reflect.DeepEqual(want, readGrid) {
		t.Errorf("Verification FAILED: pixels do not match.\nOriginal: %v\nRead:     %v", want, readGrid)
	}
	// Each row is two BGR pixels and two bytes of padding.
	wantPixels := []byte{0, 0, 255, 0, 0, 255, 0, 0, 0, 0, 255, 0, 0, 255, 0, 0}
	if !bytes.Equal(data[bmp.HeaderLen:], wantPixels) {
		t.Errorf("Verification FAILED: pixel bytes\nOriginal: %v\nRead:     %v", wantPixels, data[bmp.HeaderLen:])
	}
}

func TestGenConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.DefaultPath)
	cfg := config.Default()
	cfg.XPixelsPerMeter, cfg.YPixelsPerMeter, cfg.ColorsUsed = 2835, 2835, 0
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "a.bmp")
	if err := run(context.Background(), []string{"-config", cfgPath, "gen", "-o", out, "-w", "3", "-h", "1"}, nil, &bytes.Buffer{}, false); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	h, err := bmp.DecodeHeader(f)
	if err != nil {
		t.Fatal(err)
	}
	if h.XPixelsPerMeter != 2835 || h.YPixelsPerMeter != 2835 || h.ColorsUsed != 0 {
		t.Errorf("header = %+v", h.InfoHeader)
	}
}

func TestGenClean(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.bmp")
	if err := os.WriteFile(old, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "", false, "gen", "-clean", dir, "-o", "new.bmp", "-w", "4", "-h", "4"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("old.bmp still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "new.bmp")); err != nil {
		t.Errorf("new.bmp: %v", err)
	}
}

func TestGenErrors(t *testing.T) {
	out := filepath.Join(t.TempDir(), "x.bmp")
	for _, args := range [][]string{
		{"-w", "0"},
		{"-pattern", "stripes"},
		{"-color", "red"},
		{"-color", "12345"},
		{"extra"},
	} {
		if _, err := runCmd(t, "", false, append([]string{"gen", "-o", out}, args...)...); err == nil {
			t.Errorf("gen %v succeeded", args)
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Errorf("gen %v left a file behind", args)
		}
	}
}

func TestMakeGrid(t *testing.T) {
	c := bmp.Pixel{R: 1, G: 2, B: 3}
	g, err := makeGrid("gradient", 3, 2, c)
	if err != nil {
		t.Fatal(err)
	}
	if g[0][0] != (bmp.Pixel{B: 3}) || g[1][2] != (bmp.Pixel{R: 255, G: 255, B: 3}) || g[0][1].R != 127 {
		t.Errorf("gradient = %v", g)
	}
	g, err = makeGrid("checker", 17, 9, c)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range [][3]int{{0, 0, 1}, {7, 7, 1}, {8, 0, 0}, {0, 8, 0}, {8, 8, 1}, {16, 0, 1}} {
		if got := g[p[1]][p[0]] == c; got != (p[2] == 1) {
			t.Errorf("checker (%d,%d) = %v", p[0], p[1], g[p[1]][p[0]])
		}
	}
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]bmp.Pixel{
		"ffffff":  {R: 255, G: 255, B: 255},
		"#102030": {R: 0x10, G: 0x20, B: 0x30},
		"00FF00":  {G: 255},
	} {
		got, err := parseColor(in)
		if err != nil || got != want {
			t.Errorf("parseColor(%q) = %v, %v", in, got, err)
		}
	}
}

func TestInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bmp")
	genFile(t, path, "-w", "5", "-h", "3")
	out, err := runCmd(t, "", false, "inspect", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"InfoHeader.Width", "FileHeader.Signature", `"BM"`, "codec", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "problem") {
		t.Errorf("unexpected problem:\n%s", out)
	}
}

func TestInspectJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bmp")
	genFile(t, path, "-w", "5", "-h", "3")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "", false, "inspect", "-json", path)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Layout string `json:"layout"`
		Values []struct {
			Name string `json:"name"`
		} `json:"values"`
		Report struct {
			ExpectedSize int64    `json:"expected_size"`
			ActualSize   int64    `json:"actual_size"`
			Problems     []string `json:"problems"`
		} `json:"report"`
		Codec string `json:"codec"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if got.Layout != "bmp24" || len(got.Values) != 15 || got.Codec != "ok" {
		t.Errorf("got %+v", got)
	}
	if got.Report.ExpectedSize != 54+3*16 || got.Report.ActualSize != 54+3*16+2 {
		t.Errorf("report = %+v", got.Report)
	}
	if len(got.Report.Problems) != 1 || !strings.Contains(got.Report.Problems[0], "2 trailing bytes") {
		t.Errorf("problems = %q", got.Report.Problems)
	}
}

func TestInspectUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bmp")
	genFile(t, path, "-w", "2", "-h", "2")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[28] = 8
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "", false, "inspect", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "want 24") || !strings.Contains(out, "unsupported") {
		t.Errorf("output:\n%s", out)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	genFile(t, filepath.Join(dir, "a.bmp"), "-w", "3", "-h", "3")
	genFile(t, filepath.Join(dir, "b.BMP"), "-w", "1", "-h", "7", "-pattern", "gradient")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "", false, "check", "-workers", "1", dir)
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "a.bmp 3x3") || !strings.HasSuffix(lines[1], "b.BMP 1x7") {
		t.Errorf("output:\n%s", out)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a.bmp"))
	if err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "c.bmp")
	if err := os.WriteFile(bad, data[:len(data)-1], 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = runCmd(t, "", false, "check", dir)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 files failed") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(out, "FAIL "+bad) || !strings.Contains(out, "truncated") {
		t.Errorf("output:\n%s", out)
	}
}

func TestCheckSelect(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.bmp", "b.bmp", "c.bmp"} {
		genFile(t, filepath.Join(dir, name), "-w", "2", "-h", "2")
	}
	out, err := runCmd(t, "2\n", true, "check", "-select", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ok   "+filepath.Join(dir, "b.bmp")) || strings.Contains(out, "ok   "+filepath.Join(dir, "a.bmp")) {
		t.Errorf("output:\n%s", out)
	}
	// Without a terminal the prompt is skipped.
	out, err = runCmd(t, "2\n", false, "check", "-select", dir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "ok ") != 3 {
		t.Errorf("output:\n%s", out)
	}
}

func TestCheckAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := checkAll(ctx, []string{"a.bmp", "b.bmp"}, 1); err == nil {
		t.Errorf("checkAll succeeded after cancel")
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "paletted.bmp")
	img := image.NewPaletted(image.Rect(0, 0, 3, 2), color.Palette{
		color.RGBA{R: 255, A: 255},
		color.RGBA{B: 255, A: 255},
	})
	img.SetColorIndex(1, 0, 1)
	img.SetColorIndex(2, 1, 1)
	var buf bytes.Buffer
	if err := gobmp.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(in, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := bmp.Unmarshal(buf.Bytes()); err == nil {
		t.Fatalf("paletted file decoded as 24-bit")
	}

	out := filepath.Join(dir, "out.bmp")
	if _, err := runCmd(t, "", false, "convert", in, out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	got, err := bmp.Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	r, b := bmp.Pixel{R: 255}, bmp.Pixel{B: 255}
	if want := (bmp.Grid{{r, b, r}, {r, r, b}}); !reflect.DeepEqual(got, want) {
		t.Errorf("converted = %v, want %v", got, want)
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := runCmd(t, "", false, "-log-level", "warn", "config")
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatal(err)
	}
	want := config.Default()
	want.LogLevel = "warn"
	if cfg != want {
		t.Errorf("config = %+v, want %+v", cfg, want)
	}

	path := filepath.Join(t.TempDir(), "saved.json")
	if _, err := runCmd(t, "", false, "config", "-o", path); err != nil {
		t.Fatal(err)
	}
	if saved, err := config.Load(path); err != nil || saved != config.Default() {
		t.Errorf("saved = %+v, %v", saved, err)
	}
}

func TestRunErrors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"bogus"},
		{"-log-level", "loud", "config"},
		{"inspect"},
		{"check"},
		{"convert", "a.bmp"},
	} {
		if _, err := runCmd(t, "", false, args...); err == nil {
			t.Errorf("%v succeeded", args)
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "src.bmp")
	genFile(t, src, "-w", "2", "-h", "2")
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	e := &env{cfg: config.Default(), stdout: out}
	go func() { done <- runWatch(ctx, e, []string{"-settle", "20ms", dir}) }()

	// The watcher may not be registered yet, so keep writing until it reports.
	target := filepath.Join(dir, "new.bmp")
	deadline := time.Now().Add(10 * time.Second)
	for !strings.Contains(out.String(), "ok   "+target) {
		if time.Now().After(deadline) {
			t.Fatalf("no report for %s, output:\n%s", target, out.String())
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch: %v", err)
	}
}

func TestDebouncerRetouchAfterFire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := newDebouncer(10 * time.Millisecond)
	defer d.stop()

	d.touch(ctx, "a.bmp")
	first := <-d.fired
	// A write lands after the timer fired but before the loop consumed it.
	d.touch(ctx, "a.bmp")
	if d.take(first) {
		t.Fatal("superseded firing was accepted")
	}
	second := <-d.fired
	if !d.take(second) {
		t.Fatal("latest firing was rejected")
	}
	if d.take(second) {
		t.Error("firing accepted twice")
	}
	select {
	case f := <-d.fired:
		t.Errorf("extra firing %+v", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncerBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := newDebouncer(30 * time.Millisecond)
	defer d.stop()

	for i := 0; i < 5; i++ {
		d.touch(ctx, "a.bmp")
	}
	d.touch(ctx, "b.bmp")
	accepted := map[string]int{}
	timeout := time.After(300 * time.Millisecond)
	for {
		select {
		case f := <-d.fired:
			if d.take(f) {
				accepted[f.name]++
			}
			continue
		case <-timeout:
		}
		break
	}
	if want := map[string]int{"a.bmp": 1, "b.bmp": 1}; !reflect.DeepEqual(accepted, want) {
		t.Errorf("accepted = %v, want %v", accepted, want)
	}
}
