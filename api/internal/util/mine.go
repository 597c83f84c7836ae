package util

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
)

// SniffMime detects jpeg/png/webp by magic bytes, else falls back to http.DetectContentType.
func SniffMime(b []byte) string {
	// JPEG: FF D8
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	// PNG
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	// WEBP: "RIFF" ???? "WEBP"
	if len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")) {
		return "image/webp"
	}
	if len(b) > 0 {
		return http.DetectContentType(b)
	}
	return "application/octet-stream"
}

// MimeByExt maps a file name to an image type; "" when unknown.
func MimeByExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	return ""
}

// PickMIME берём явный MIME, затем по расширению, иначе детектим по байтам.
func PickMIME(explicit, filename string, data []byte) string {
	if exp := strings.TrimSpace(explicit); exp != "" {
		return exp
	}
	if m := MimeByExt(filename); m != "" {
		return m
	}
	return SniffMime(data)
}

func MakeDataURL(mime string, b64 string) string {
	return "data:" + mime + ";base64," + b64
}
