package files

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultAttachmentBase = "file"

// AttachmentName returns the name a decrypted file is downloaded under.
// A name without a dot is replaced by "file.<ext>", the extension taken from
// the mime type.
func AttachmentName(name, mimeType string) (string, error) {
	if strings.Contains(name, ".") {
		return name, nil
	}

	ext, err := ExtensionFor(mimeType)
	if err != nil {
		return "", err
	}

	return defaultAttachmentBase + ext, nil
}

// ExtensionFor looks up the canonical extension (with the leading dot) for a mime type.
func ExtensionFor(mimeType string) (string, error) {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension(), nil
	}

	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0], nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownMimeType, mimeType)
}

// DetectMimeType sniffs the content type of data. Parameters such as charset
// are dropped, only the media type is kept.
func DetectMimeType(data []byte) string {
	mediaType, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(mediaType)
}
