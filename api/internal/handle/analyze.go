package handle

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"nutrilens/api/internal/analyzer"
)

const formField = "file"

var errNoFile = errors.New(`missing form field "file"`)

// Analyze: multipart "file" → validate → read → delegate → JSON.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	start := time.Now()

	mr, err := r.MultipartReader()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "expected multipart/form-data: "+err.Error())
		return
	}
	part, err := findPart(mr, formField)
	if errors.Is(err, errNoFile) {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "bad multipart body: "+err.Error())
		return
	}
	defer part.Close()

	contentType, err := analyzer.ValidateContentType(part.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, err)
		return
	}

	img, err := readLimited(part, h.maxUpload)
	if err != nil {
		log.Printf("analyze %q: %v", part.FileName(), err)
		writeError(w, &analyzer.Error{Kind: analyzer.KindDelegate, Msg: "Failed to read upload: " + err.Error(), Err: err})
		return
	}
	if err := analyzer.ValidatePayload(int64(len(img)), h.maxUpload); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.an.Analyze(r.Context(), img, contentType)
	if err != nil {
		log.Printf("analyze %q (%s, %d bytes): %s: %v", part.FileName(), contentType, len(img), analyzer.KindOf(err), err)
		writeError(w, err)
		return
	}
	if h.debug {
		log.Printf("analyze %q: %d foods, %d kcal in %v", part.FileName(), len(out.Foods), out.TotalCalories, time.Since(start))
	}
	writeJSON(w, http.StatusOK, out)
}

func findPart(mr *multipart.Reader, name string) (*multipart.Part, error) {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return nil, errNoFile
		}
		if err != nil {
			return nil, err
		}
		if p.FormName() == name {
			return p, nil
		}
		_ = p.Close()
	}
}

// readLimited reads at most max+1 bytes so an oversized upload is detectable
// without buffering all of it.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return b, nil
}
