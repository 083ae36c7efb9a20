package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/internal/browser"
	"github.com/hazyhaar/hcbot/courtfetch/internal/diag"
)

// captchaPNG draws dark glyph-ish bars on a light noisy background.
func captchaPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: 200, G: 210, B: 190, A: 255}
			if x%10 < 3 {
				c = color.RGBA{R: 30, G: 40, B: 50, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakePage struct {
	url        string
	src        string
	visibleErr error
	resp       *browser.Response
	getErr     error
	shot       []byte
	gets       []string
	shots      int
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) WaitVisible(context.Context, string, time.Duration) error { return p.visibleErr }

func (p *fakePage) Attribute(_ context.Context, _, name string) (string, bool, error) {
	if name != "src" || p.src == "" {
		return "", false, nil
	}
	return p.src, true, nil
}

func (p *fakePage) Get(_ context.Context, url string, _ time.Duration) (*browser.Response, error) {
	p.gets = append(p.gets, url)
	if p.getErr != nil {
		return nil, p.getErr
	}
	return p.resp, nil
}

func (p *fakePage) ElementScreenshot(context.Context, string) ([]byte, error) {
	p.shots++
	return p.shot, nil
}

func constant(text string) Recognizer {
	return RecognizerFunc(func(context.Context, []byte) (string, error) { return text, nil })
}

func TestPreprocessBinarizesAndUpscales(t *testing.T) {
	out, err := Preprocess(captchaPNG(t, 40, 12))
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	b := img.Bounds()
	if b.Dx() != 160 || b.Dy() != 48 {
		t.Fatalf("size = %dx%d, want 160x48", b.Dx(), b.Dy())
	}
	var black, white int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			switch g {
			case 0:
				black++
			case 255:
				white++
			default:
				t.Fatalf("pixel (%d,%d) = %d, want 0 or 255", x, y, g)
			}
		}
	}
	if black == 0 || white == 0 {
		t.Fatalf("black=%d white=%d, want both", black, white)
	}
	// Bar centre stays dark, background centre stays light.
	if g := color.GrayModel.Convert(img.At(4, 20)).(color.Gray).Y; g != 0 {
		t.Errorf("bar pixel = %d, want 0", g)
	}
	if g := color.GrayModel.Convert(img.At(26, 20)).(color.Gray).Y; g != 255 {
		t.Errorf("background pixel = %d, want 255", g)
	}
}

func TestPreprocessRejectsGarbage(t *testing.T) {
	if _, err := Preprocess([]byte("not an image")); err == nil {
		t.Fatal("expected error")
	}
}

func TestSanitizeAccept(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"aB3 x9Z", "aB3x9Z", true},
		{" a-b_c.d!e f\n", "abcdef", true},
		{"abc12", "abc12", false},
		{"abc1234", "abc1234", false},
		{"ab©12 34", "ab1234", true},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if got := Accept(tt.in); got != tt.ok {
			t.Errorf("Accept(%q) = %v, want %v", tt.in, got, tt.ok)
		}
	}
}

func TestAcceptMatchesLengthGate(t *testing.T) {
	for _, s := range []string{"", "a", "ab c", "abc def", "!!!!!!", "abcdef", "a.b.c.d.e.f", "abcdefg"} {
		if Accept(s) != (len(Sanitize(s)) == CodeLength) {
			t.Errorf("Accept(%q) disagrees with sanitized length", s)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
	got, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %v", got)
	}
	if _, err := DecodeDataURI("data:image/png;base64"); err == nil {
		t.Fatal("expected error for missing comma")
	}
}

func TestSolveFromDataURI(t *testing.T) {
	raw := captchaPNG(t, 30, 10)
	page := &fakePage{
		url: "https://portal.example/main.php",
		src: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
	}
	var lines []string
	s := NewSolver(constant(" Ab 3x9Z "), Options{Logf: func(f string, a ...any) {
		lines = append(lines, f)
	}})
	a := s.Solve(context.Background(), page, diag.Tag{Case: "1/2024", Attempt: 1})
	if !a.OK() || a.Code != "Ab3x9Z" {
		t.Fatalf("code = %q err = %v", a.Code, a.Err)
	}
	if a.Source != SourceDataURI {
		t.Errorf("source = %q", a.Source)
	}
	if len(page.gets) != 0 || page.shots != 0 {
		t.Errorf("unexpected fallbacks: gets=%v shots=%d", page.gets, page.shots)
	}
	if len(lines) == 0 || !strings.Contains(lines[len(lines)-1], "ocr_raw") {
		t.Errorf("no recognition line logged: %v", lines)
	}
}

func TestSolveNetworkRelativeURL(t *testing.T) {
	raw := captchaPNG(t, 30, 10)
	page := &fakePage{
		url:  "https://portal.example/hcservices/main.php",
		src:  "vendor/securimage/securimage_show.php?123",
		resp: &browser.Response{Status: http.StatusOK, ContentType: "image/png", Body: raw},
	}
	a := NewSolver(constant("q1w2e3"), Options{}).Solve(context.Background(), page, diag.Tag{})
	if a.Source != SourceNetwork || a.Code != "q1w2e3" {
		t.Fatalf("source=%q code=%q err=%v", a.Source, a.Code, a.Err)
	}
	want := "https://portal.example/hcservices/vendor/securimage/securimage_show.php?123"
	if len(page.gets) != 1 || page.gets[0] != want {
		t.Fatalf("gets = %v, want %s", page.gets, want)
	}
}

func TestSolveFallsBackToScreenshot(t *testing.T) {
	raw := captchaPNG(t, 30, 10)
	tests := []struct {
		name string
		page *fakePage
	}{
		{"bad status", &fakePage{url: "https://p.example/", src: "/c.png", resp: &browser.Response{Status: 403}, shot: raw}},
		{"fetch error", &fakePage{url: "https://p.example/", src: "/c.png", getErr: errors.New("reset"), shot: raw}},
		{"no src", &fakePage{url: "https://p.example/", shot: raw}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logged []string
			s := NewSolver(constant("ZZZZZZ"), Options{Logf: func(f string, a ...any) {
				logged = append(logged, f)
			}})
			a := s.Solve(context.Background(), tt.page, diag.Tag{})
			if a.Source != SourceScreenshot || !a.OK() {
				t.Fatalf("source=%q code=%q err=%v", a.Source, a.Code, a.Err)
			}
			if tt.page.shots != 1 {
				t.Fatalf("shots = %d", tt.page.shots)
			}
			if tt.name == "bad status" && !strings.Contains(strings.Join(logged, "\n"), "captcha URL status=%d") {
				t.Errorf("status not logged: %v", logged)
			}
		})
	}
}

func TestSolveRejectsWrongLength(t *testing.T) {
	raw := captchaPNG(t, 30, 10)
	page := &fakePage{src: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)}
	for _, text := range []string{"abc", "abcdefg", "", "a b-c"} {
		a := NewSolver(constant(text), Options{}).Solve(context.Background(), page, diag.Tag{})
		if a.OK() {
			t.Errorf("%q accepted as %q", text, a.Code)
		}
		if !errors.Is(a.Err, ErrUnreadable) {
			t.Errorf("%q: err = %v", text, a.Err)
		}
	}
}

func TestSolveImageNotVisible(t *testing.T) {
	page := &fakePage{visibleErr: browser.ErrWaitTimeout}
	a := NewSolver(constant("abcdef"), Options{}).Solve(context.Background(), page, diag.Tag{})
	if a.OK() || !errors.Is(a.Err, ErrUnreadable) {
		t.Fatalf("code=%q err=%v", a.Code, a.Err)
	}
}

func TestSolveSavesDiagnostics(t *testing.T) {
	dir := t.TempDir()
	raw := captchaPNG(t, 30, 10)
	page := &fakePage{src: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)}
	s := NewSolver(constant("abcdef"), Options{Diag: diag.New(dir)})
	s.Solve(context.Background(), page, diag.Tag{Case: "WP 5/2024", Attempt: 2})

	entries, err := readDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var raws, processed int
	for _, e := range entries {
		if strings.Contains(e, "_attempt2_captcha_raw_") {
			raws++
		}
		if strings.Contains(e, "_attempt2_captcha_processed_") {
			processed++
		}
	}
	if raws != 1 || processed != 1 {
		t.Fatalf("artifacts = %v", entries)
	}
}
