package encode

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/divanvisagie/Photograph"
)

func testImage(t *testing.T, w, h int) *photograph.Image {
	t.Helper()
	img, err := photograph.NewImage(w, h)
	if err != nil {
		t.Fatal(err)
	}
	p := img.Pix()
	for i := range p {
		p[i] = uint8(i * 7)
	}
	for i := 3; i < len(p); i += 4 {
		p[i] = 255
	}
	return img
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJPEG, false},
		{"jpg", FormatJPEG, false},
		{"JPEG", FormatJPEG, false},
		{"png", FormatPNG, false},
		{"qoi", FormatQOI, false},
		{"webp", FormatJPEG, true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseFormat(%q) err = %v", tc.in, err)
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWriteJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")
	if err := Write(path, testImage(t, 20, 10), Options{Format: FormatJPEG}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Width != 20 || cfg.Height != 10 {
		t.Errorf("encoded dims = %dx%d, want 20x10", cfg.Width, cfg.Height)
	}
}

func TestWritePNGLossless(t *testing.T) {
	img := testImage(t, 8, 8)
	path := filepath.Join(t.TempDir(), "out.png")
	if err := Write(path, img, Options{Format: FormatPNG}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	back := decoded.(*image.NRGBA)
	r, g, b, a := img.RGBAAt(3, 3)
	got := back.NRGBAAt(3, 3)
	if got.R != r || got.G != g || got.B != b || got.A != a {
		t.Error("png round trip changed pixels")
	}
}

func TestWriteQOI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.qoi")
	if err := Write(path, testImage(t, 16, 16), Options{Format: FormatQOI}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("qoi file is empty")
	}
}

func TestWriteCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.jpg")
	if err := Write(path, testImage(t, 4, 4), Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("nested output not created")
	}
}

func TestParseProfile(t *testing.T) {
	cases := []struct {
		in      string
		want    Profile
		wantErr bool
	}{
		{"", ProfileBalanced, false},
		{"balanced", ProfileBalanced, false},
		{"fast", ProfileFast, false},
		{"BEST", ProfileBest, false},
		{"turbo", ProfileBalanced, true},
	}
	for _, tc := range cases {
		got, err := ParseProfile(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseProfile(%q) err = %v", tc.in, err)
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseProfile(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestProfileQualityDefaults(t *testing.T) {
	if ProfileFast.jpegQuality() >= ProfileBalanced.jpegQuality() {
		t.Error("fast profile should use lower JPEG quality than balanced")
	}
	if ProfileBest.jpegQuality() <= ProfileBalanced.jpegQuality() {
		t.Error("best profile should use higher JPEG quality than balanced")
	}
	if ProfileBalanced.jpegQuality() != DefaultJPEGQuality {
		t.Errorf("balanced JPEG quality = %d, want %d",
			ProfileBalanced.jpegQuality(), DefaultJPEGQuality)
	}
}

func TestProfileAffectsJPEGSize(t *testing.T) {
	img := testImage(t, 64, 64)
	dir := t.TempDir()

	fast := filepath.Join(dir, "fast.jpg")
	best := filepath.Join(dir, "best.jpg")
	if err := Write(fast, img, Options{Profile: ProfileFast}); err != nil {
		t.Fatalf("Write fast: %v", err)
	}
	if err := Write(best, img, Options{Profile: ProfileBest}); err != nil {
		t.Fatalf("Write best: %v", err)
	}
	fi, err := os.Stat(fast)
	if err != nil {
		t.Fatal(err)
	}
	bi, err := os.Stat(best)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() >= bi.Size() {
		t.Errorf("fast output (%d bytes) not smaller than best (%d bytes)", fi.Size(), bi.Size())
	}
}

func TestResize(t *testing.T) {
	img := testImage(t, 400, 200)

	out := Resize(img, 100)
	if out.Width() != 100 || out.Height() != 50 {
		t.Errorf("resized dims = %dx%d, want 100x50", out.Width(), out.Height())
	}

	// No upscaling.
	same := Resize(img, 800)
	if same != img {
		t.Error("image under the limit was copied")
	}

	tall := testImage(t, 100, 300)
	out = Resize(tall, 150)
	if out.Width() != 50 || out.Height() != 150 {
		t.Errorf("tall resized dims = %dx%d, want 50x150", out.Width(), out.Height())
	}
}
