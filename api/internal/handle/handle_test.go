package handle

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"nutrilens/api/internal/analyzer"
	"nutrilens/api/internal/analyzer/types"
	"nutrilens/api/internal/httpserver"
)

const appleJSON = `{"foods":[{"name":"Apple","bbox":[100,100,400,400],"weight_g":150,"calories":80,"protein":0,"carbs":21,"fat":0,"confidence":0.9}],"total_calories":80,"health_tip":"Eat more greens"}`

type stubGen struct {
	reply string
	err   error
	calls int
	last  analyzer.Request
}

func (s *stubGen) Name() string     { return "stub" }
func (s *stubGen) GetModel() string { return "stub-1" }
func (s *stubGen) Generate(_ context.Context, req analyzer.Request) (string, error) {
	s.calls++
	s.last = req
	return s.reply, s.err
}

func newServer(gen analyzer.Generator, opts ...Option) *httptest.Server {
	mux := http.NewServeMux()
	New(analyzer.NewDelegate(gen), "NutriLens", opts...).Register(mux)
	return httptest.NewServer(mux)
}

func upload(t *testing.T, url, field, filename, contentType string, data []byte) (int, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	pw, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	pw.Write(data)
	mw.Close()

	resp, err := http.Post(url+"/analyze", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func TestAnalyzeMealPNG(t *testing.T) {
	gen := &stubGen{reply: appleJSON}
	srv := newServer(gen)
	defer srv.Close()

	code, body := upload(t, srv.URL, "file", "meal.png", "image/png", []byte("\x89PNG\r\n\x1a\nfake"))
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", code, body)
	}
	if body != appleJSON {
		t.Errorf("body = %s\nwant %s", body, appleJSON)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d", gen.calls)
	}
}

func TestInvalidTypeNeverReachesModel(t *testing.T) {
	gen := &stubGen{reply: appleJSON}
	srv := newServer(gen)
	defer srv.Close()

	for _, ct := range []string{"image/gif", "application/pdf", "text/plain"} {
		code, body := upload(t, srv.URL, "file", "x", ct, []byte("GIF89a"))
		if code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", ct, code)
		}
		if !strings.Contains(body, `"detail":"Invalid file type`) {
			t.Errorf("%s: body = %s", ct, body)
		}
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times", gen.calls)
	}
}

func TestContentTypeIsCanonicalized(t *testing.T) {
	gen := &stubGen{reply: appleJSON}
	srv := newServer(gen)
	defer srv.Close()

	code, body := upload(t, srv.URL, "file", "meal.png", "IMAGE/PNG; name=x", []byte("\x89PNG\r\n\x1a\nfake"))
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", code, body)
	}
	if gen.last.MIMEType != "image/png" {
		t.Errorf("engine got MIME %q, want image/png", gen.last.MIMEType)
	}
}

func TestTruncatedUploadIs500(t *testing.T) {
	gen := &stubGen{reply: appleJSON}
	srv := newServer(gen)
	defer srv.Close()

	// part without a closing boundary
	body := "--xyz\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"meal.jpg\"\r\n" +
		"Content-Type: image/jpeg\r\n\r\n" +
		"\xff\xd8\xff\xe0partial"
	resp, err := http.Post(srv.URL+"/analyze", "multipart/form-data; boundary=xyz", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, b)
	}
	if !strings.Contains(string(b), "Failed to read upload") {
		t.Errorf("body = %s", b)
	}
	if gen.calls != 0 {
		t.Error("model called with a partial upload")
	}
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(context.Context, []byte, string) (types.AnalysisResult, error) {
	panic("sdk blew up")
}

func TestPanicBecomes500(t *testing.T) {
	mux := http.NewServeMux()
	New(panicAnalyzer{}, "NutriLens").Register(mux)
	srv := httptest.NewServer(httpserver.Recover(mux))
	defer srv.Close()

	code, body := upload(t, srv.URL, "file", "meal.jpg", "image/jpeg", []byte{0xFF, 0xD8})
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %s", code, body)
	}
	if body != `{"detail":"sdk blew up"}` {
		t.Errorf("body = %s", body)
	}
}

func TestMissingKeyIs500WithFixedMessage(t *testing.T) {
	srv := newServer(&stubGen{err: analyzer.ErrMissingAPIKey})
	defer srv.Close()

	code, body := upload(t, srv.URL, "file", "meal.jpg", "image/jpeg", []byte{0xFF, 0xD8})
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d", code)
	}
	if body != `{"detail":"Server configuration error: Missing API Key"}` {
		t.Errorf("body = %s", body)
	}
}

func TestModelFailureIs500WithMessage(t *testing.T) {
	srv := newServer(&stubGen{err: errors.New("quota exceeded")})
	defer srv.Close()

	code, body := upload(t, srv.URL, "file", "meal.jpg", "image/jpeg", []byte{0xFF, 0xD8})
	if code != http.StatusInternalServerError || !strings.Contains(body, "quota exceeded") {
		t.Fatalf("status = %d, body = %s", code, body)
	}
}

func TestMalformedModelOutputIs500(t *testing.T) {
	srv := newServer(&stubGen{reply: "sorry, I can't"})
	defer srv.Close()

	code, body := upload(t, srv.URL, "file", "meal.jpg", "image/jpeg", []byte{0xFF, 0xD8})
	if code != http.StatusInternalServerError || !strings.Contains(body, "Failed to analyze image") {
		t.Fatalf("status = %d, body = %s", code, body)
	}
}

func TestMissingFileField(t *testing.T) {
	gen := &stubGen{reply: appleJSON}
	srv := newServer(gen)
	defer srv.Close()

	code, _ := upload(t, srv.URL, "image", "meal.jpg", "image/jpeg", []byte{0xFF, 0xD8})
	if code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", code)
	}
	if gen.calls != 0 {
		t.Error("model called without a file")
	}
}

func TestEmptyAndOversizedUploads(t *testing.T) {
	gen := &stubGen{reply: appleJSON}
	srv := newServer(gen, WithMaxUpload(8))
	defer srv.Close()

	if code, _ := upload(t, srv.URL, "file", "a.jpg", "image/jpeg", nil); code != http.StatusBadRequest {
		t.Errorf("empty: status = %d", code)
	}
	if code, _ := upload(t, srv.URL, "file", "a.jpg", "image/jpeg", bytes.Repeat([]byte{1}, 9)); code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized: status = %d", code)
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times", gen.calls)
	}
}

func TestMethodAndBody(t *testing.T) {
	srv := newServer(&stubGen{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/analyze")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/analyze", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-multipart status = %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newServer(&stubGen{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != `{"service":"NutriLens","status":"healthy"}` {
		t.Errorf("status = %d, body = %s", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[analyzer.Kind]int{
		analyzer.KindInvalidFileType: 400,
		analyzer.KindEmptyUpload:     400,
		analyzer.KindUploadTooLarge:  413,
		analyzer.KindConfiguration:   500,
		analyzer.KindDelegate:        500,
	}
	for k, want := range cases {
		if got := statusFor(k); got != want {
			t.Errorf("%v: got %d, want %d", k, got, want)
		}
	}
}
