package utils

import (
	"bytes"
	"math"
	"net/http"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatWebP    = "webp"
	formatGIF     = "gif"
	formatBMP     = "bmp"
	formatTIFF    = "tiff"
	formatUnknown = "unknown"
)

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return formatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return formatPNG
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return formatWebP
	}
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return formatGIF
	}
	if data[0] == 'B' && data[1] == 'M' {
		return formatBMP
	}
	// TIFF: II*\0 or MM\0*
	if bytes.HasPrefix(data, []byte{'I', 'I', 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{'M', 'M', 0x00, 0x2A}) {
		return formatTIFF
	}
	// Fallback to net/http sniffing.
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return formatJPEG
	case "image/png":
		return formatPNG
	case "image/webp":
		return formatWebP
	case "image/gif":
		return formatGIF
	case "image/bmp":
		return formatBMP
	}
	return formatUnknown
}

// ScaleDimensions computes output (w, h) preserving aspect ratio, rounding the
// derived axis to the nearest pixel but never below 1.  Pass 0 for either axis to calculate it
// from the other.
func ScaleDimensions(srcW, srcH, targetW, targetH int) (int, int) {
	if targetW == 0 && targetH == 0 {
		return srcW, srcH
	}
	if targetW == 0 {
		return max(1, int(math.Round(float64(targetH)*float64(srcW)/float64(srcH)))), targetH
	}
	if targetH == 0 {
		return targetW, max(1, int(math.Round(float64(targetW)*float64(srcH)/float64(srcW))))
	}
	return targetW, targetH
}

// FitWidth returns the dimensions for scaling (srcW, srcH) to targetW.  A
// source narrower than targetW keeps its size unless upscale is set.
func FitWidth(srcW, srcH, targetW int, upscale bool) (int, int) {
	if targetW <= 0 || (srcW <= targetW && !upscale) {
		return srcW, srcH
	}
	return ScaleDimensions(srcW, srcH, targetW, 0)
}

// CloneBytes returns a copy of b (safe for use after the source buffer is released).
func CloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
