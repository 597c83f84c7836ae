package analyzer

import (
	"fmt"
	"mime"
	"strings"
)

// AllowedTypes: допустимые Content-Type загрузки.
var AllowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ValidateContentType trusts the declared type; file bytes are not inspected.
// It returns the bare lower-case media type that engines should receive.
func ValidateContentType(contentType string) (string, error) {
	mt := strings.TrimSpace(contentType)
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	mt = strings.ToLower(mt)
	for _, t := range AllowedTypes {
		if mt == t {
			return t, nil
		}
	}
	return "", invalidFileType(contentType)
}

// ValidatePayload checks the size of an upload. max <= 0 disables the cap.
func ValidatePayload(n, max int64) error {
	if n == 0 {
		return &Error{Kind: KindEmptyUpload, Msg: "Uploaded file is empty."}
	}
	if max > 0 && n > max {
		return &Error{
			Kind: KindUploadTooLarge,
			Msg:  fmt.Sprintf("Uploaded file exceeds %d bytes.", max),
		}
	}
	return nil
}
