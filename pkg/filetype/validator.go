package filetype

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	domain "github.com/NeuralTrust/TrustBoundary/pkg/domain/errors"
)

const octetStream = "application/octet-stream"

type Result struct {
	Valid            bool   `json:"valid"`
	ClaimedMimeType  string `json:"claimed_mime_type"`
	DetectedMimeType string `json:"detected_mime_type,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// Err returns a ValidationRejectedError for invalid results.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return domain.NewValidationRejectedError(r.ClaimedMimeType, r.DetectedMimeType, r.Reason)
}

var blockedClaims = map[string]struct{}{
	"application/x-msdownload":                      {},
	"application/x-dosexec":                         {},
	"application/x-msdos-program":                   {},
	"application/vnd.microsoft.portable-executable": {},
	"application/x-executable":                      {},
	"application/x-elf":                             {},
	"application/x-sharedlib":                       {},
	"application/x-mach-binary":                     {},
	"application/x-sh":                              {},
	"application/x-shellscript":                     {},
	"text/x-shellscript":                            {},
	"application/x-csh":                             {},
	"application/x-bat":                             {},
	"application/x-msi":                             {},
}

var safeTextClaims = map[string]struct{}{
	"text/plain":             {},
	"text/html":              {},
	"text/css":               {},
	"text/javascript":        {},
	"application/javascript": {},
	"application/json":       {},
	"application/xml":        {},
	"text/xml":               {},
	"text/markdown":          {},
	"text/csv":               {},
	"application/yaml":       {},
	"application/x-yaml":     {},
	"text/yaml":              {},
	"text/x-yaml":            {},
}

var aliases = map[string]string{
	"image/jpg":                "image/jpeg",
	"image/pjpeg":              "image/jpeg",
	"image/x-png":              "image/png",
	"audio/mp3":                "audio/mpeg",
	"audio/x-mp3":              "audio/mpeg",
	"audio/mpeg3":              "audio/mpeg",
	"audio/x-mpeg":             "audio/mpeg",
	"application/x-pdf":        "application/pdf",
	"application/x-javascript": "application/javascript",
	"text/x-markdown":          "text/markdown",
	"application/x-gzip":       "application/gzip",
	"audio/x-wav":              "audio/wav",
}

// containers lists claims a detected container type may legitimately carry.
var containers = map[string][]string{
	"application/zip": {
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.text",
		"application/vnd.oasis.opendocument.spreadsheet",
		"application/vnd.oasis.opendocument.presentation",
		"application/epub+zip",
		"application/java-archive",
		"application/vnd.android.package-archive",
		"application/x-zip",
	},
	"video/mp4": {
		"video/quicktime",
		"audio/mp4",
		"audio/m4a",
		"audio/x-m4a",
		"video/x-m4v",
	},
	"audio/mpeg": {
		"audio/mp3",
	},
	"application/x-cfb": {
		"application/msword",
		"application/vnd.ms-excel",
		"application/vnd.ms-powerpoint",
		"application/vnd.ms-outlook",
		"application/vnd.visio",
	},
}

// NormalizeMimeType lowercases, drops parameters and folds common aliases.
func NormalizeMimeType(claimed string) string {
	claimed = strings.ToLower(strings.TrimSpace(claimed))
	if mediaType, _, err := mime.ParseMediaType(claimed); err == nil {
		claimed = mediaType
	} else if i := strings.IndexByte(claimed, ';'); i >= 0 {
		claimed = strings.TrimSpace(claimed[:i])
	}
	if canonical, ok := aliases[claimed]; ok {
		return canonical
	}
	if claimed == "" {
		return octetStream
	}
	return claimed
}

func IsBlockedClaim(claimed string) bool {
	_, ok := blockedClaims[NormalizeMimeType(claimed)]
	return ok
}

// ValidateMagicBytes checks header against the claimed type. Rejection is a
// normal result, never an error.
func ValidateMagicBytes(header []byte, claimedMimeType string) Result {
	claimed := NormalizeMimeType(claimedMimeType)
	sig, found := Detect(header)

	result := Result{ClaimedMimeType: claimed}
	if found {
		result.DetectedMimeType = sig.MimeType()
	}

	if _, blocked := blockedClaims[claimed]; blocked {
		result.Reason = fmt.Sprintf("file type %s is not allowed", claimed)
		return result
	}
	if found && sig.Blocked {
		result.Reason = fmt.Sprintf("file content was detected as %s, which is not allowed", sig.MimeType())
		return result
	}
	if _, text := safeTextClaims[claimed]; text {
		if found {
			result.Reason = mismatch(claimed, sig.MimeType())
			return result
		}
		result.Valid = true
		return result
	}
	if !found {
		result.Valid = true
		return result
	}
	if compatible(claimed, sig) {
		result.Valid = true
		return result
	}
	result.Reason = mismatch(claimed, sig.MimeType())
	return result
}

func compatible(claimed string, sig Signature) bool {
	if claimed == octetStream {
		return true
	}
	for _, candidate := range sig.MimeTypes {
		if claimed == candidate {
			return true
		}
	}
	detected := sig.MimeType()
	if detected == "image/webp" && strings.HasPrefix(claimed, "image/") {
		return true
	}
	for _, allowed := range containers[detected] {
		if claimed == allowed {
			return true
		}
	}
	return false
}

func mismatch(claimed, detected string) string {
	return fmt.Sprintf("file claims to be %s but its content is %s", claimed, detected)
}

// Inspection carries the verdict plus the bytes consumed to reach it.
type Inspection struct {
	Result
	Prefix []byte
	// Body replays Prefix followed by the rest of the stream. Read it once.
	Body io.Reader
}

// Inspect reads at most HeaderSize bytes from r and validates them. Streams
// that end early are validated on what was read.
func Inspect(r io.Reader, claimedMimeType string) (*Inspection, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	prefix := buf[:n]
	return &Inspection{
		Result: ValidateMagicBytes(prefix, claimedMimeType),
		Prefix: prefix,
		Body:   io.MultiReader(bytes.NewReader(prefix), r),
	}, nil
}
