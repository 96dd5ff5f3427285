// Package audiofile maps Stepfun output formats to file names and content
// types, and recognises binary audio payloads by their content type.
package audiofile

import (
	"fmt"
	"mime"
	"strings"
)

// Output formats accepted by the speech endpoint.
const (
	FormatMP3  = "mp3"
	FormatAAC  = "aac"
	FormatFLAC = "flac"
	FormatWAV  = "wav"
	FormatPCM  = "pcm"
	FormatOpus = "opus"
)

// Content types.
const (
	ContentTypeOctetStream = "application/octet-stream"
	audioTypePrefix        = "audio/"
)

const (
	speechBaseName         = "speech"
	dot                    = "."
	invalidCharReplacement = "_"
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

const (
	formatGB    = "%.1f GB"
	formatMB    = "%.1f MB"
	formatKB    = "%.1f KB"
	formatBytes = "%d B"
)

var formatContentTypes = map[string]string{
	FormatMP3:  "audio/mpeg",
	FormatAAC:  "audio/aac",
	FormatFLAC: "audio/flac",
	FormatWAV:  "audio/wav",
	FormatPCM:  "audio/pcm",
	FormatOpus: "audio/opus",
}

// Formats returns the supported output formats in display order.
func Formats() []string {
	return []string{FormatMP3, FormatAAC, FormatFLAC, FormatWAV, FormatPCM, FormatOpus}
}

// IsSupportedFormat reports whether format is one of the six output formats.
func IsSupportedFormat(format string) bool {
	_, ok := formatContentTypes[format]

	return ok
}

// ContentType returns the content type for an output format, or
// application/octet-stream for unknown formats.
func ContentType(format string) string {
	contentType, ok := formatContentTypes[format]
	if !ok {
		return ContentTypeOctetStream
	}

	return contentType
}

// Filename returns the stored file name for audio in the given format.
func Filename(format string) string {
	return SanitizeFilename(speechBaseName + dot + format)
}

// MediaType strips parameters from a Content-Type header value and lowercases
// it. Values that do not parse are lowercased and cut at the first ';'.
func MediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		return mediaType
	}

	head, _, _ := strings.Cut(contentType, ";")

	return strings.ToLower(strings.TrimSpace(head))
}

// IsBinaryAudio reports whether a Content-Type header denotes an audio or
// generic binary payload.
func IsBinaryAudio(contentType string) bool {
	mediaType := MediaType(contentType)

	return strings.HasPrefix(mediaType, audioTypePrefix) || mediaType == ContentTypeOctetStream
}

// ResolveContentType picks the content type recorded for stored audio: the
// observed header, unless it is missing or the generic octet-stream type, in
// which case the requested format's type is used.
func ResolveContentType(observed, format string) string {
	mediaType := MediaType(observed)
	if mediaType == "" || mediaType == ContentTypeOctetStream {
		return ContentType(format)
	}

	return observed
}

// SanitizeFilename removes or replaces characters that are invalid in most filesystems.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		" ", invalidCharReplacement,
	)

	return replacer.Replace(filename)
}

// FormatFileSize formats a byte count for log lines (e.g. "1.2 MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}
