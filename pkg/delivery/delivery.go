// Package delivery picks how a downloaded file is sent back to the chat.
package delivery

// Mode is the delivery strategy chosen for one downloaded file.
type Mode string

const (
	// Streamable sends the file as a video with progressive playback enabled.
	Streamable Mode = "streamable"
	// AsDocument sends the file as a generic document attachment.
	AsDocument Mode = "as_document"
)

// MaxStreamableBytes is the size threshold for streamable delivery,
// 2000 MiB expressed in 1024-based megabytes.
const MaxStreamableBytes int64 = 2000 * 1024 * 1024

// DocumentCaption is the fixed caption used for oversized files.
const DocumentCaption = "📁 File too large for streaming, sent as document"

// Choose maps a file size to a delivery mode. Sizes at or above the
// threshold go out as documents; the decision is final once size is known.
func Choose(sizeBytes int64) Mode {
	if sizeBytes < MaxStreamableBytes {
		return Streamable
	}

	return AsDocument
}

// StreamCaption composes the caption for a streamable video delivery.
func StreamCaption(title string) string {
	return "✅ " + title
}
