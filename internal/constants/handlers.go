// Package constants provides shared constants used across the codebase.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum size of a multipart upload (32 MB)
	MaxUploadSize = 32 << 20

	// UploadFormField is the multipart field carrying signature images
	UploadFormField = "file[]"
)

// AllowedImageExtensions lists the file extensions accepted for signature uploads
var AllowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Job constants
const (
	// EventChannelBuffer is the buffer size for job event listener channels
	EventChannelBuffer = 100
)
