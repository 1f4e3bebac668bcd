// Package filter implements the content transforms hash_object and
// write_object apply before hashing/persisting a blob: binary
// detection and core.autocrlf line-ending normalization.
package filter

import (
	"bytes"
	"path/filepath"
	"strings"
)

// sniffWindow bounds how far into content the NUL sniff looks, mirroring
// the "first kilobyte" window real git's own heuristic uses.
const sniffWindow = 1024

// binaryExts are extensions assumed binary without inspecting their
// content, the same shortcut real git's gitattributes ship for common
// compressed/media/executable formats.
var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true,
	".zip": true, ".gz": true, ".tar": true, ".7z": true, ".bz2": true, ".xz": true,
	".pdf": true, ".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true,
	".class": true, ".jar": true,
}

// IsBinary reports whether content should be left untouched by the
// autocrlf filter. A known binary extension short-circuits the check;
// otherwise content is classified binary if a NUL byte turns up within
// the first kilobyte. filename may be empty, in which case only the
// byte sniff applies.
func IsBinary(filename string, content []byte) bool {
	if filename != "" && binaryExts[strings.ToLower(filepath.Ext(filename))] {
		return true
	}

	window := content
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	return bytes.IndexByte(window, 0) != -1
}

// NormalizeCRLF replaces every "\r\n" pair, and every remaining stray
// "\r", with "\n". Unlike a streaming line-ending converter this
// operates on a single in-memory buffer, matching how this module's
// object codec already handles whole object payloads.
func NormalizeCRLF(content []byte) []byte {
	if !bytes.ContainsRune(content, '\r') {
		return content
	}
	out := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	out = bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
	return out
}

// Apply runs the hash_object/write_object filter pipeline: when
// applyFilters is set, autocrlf calls for normalization ("true" or
// "input"), and content isn't classified binary, CRLF line endings are
// normalized to LF. Otherwise content is returned unchanged.
func Apply(applyFilters bool, autocrlf, filename string, content []byte) []byte {
	if !applyFilters {
		return content
	}
	if autocrlf != "true" && autocrlf != "input" {
		return content
	}
	if IsBinary(filename, content) {
		return content
	}
	return NormalizeCRLF(content)
}
