package filetype

import "bytes"

// HeaderSize is the number of leading bytes needed to decide any signature.
const HeaderSize = 16

// Signature is one entry of the ordered magic-byte table. MimeTypes[0] is the
// canonical detected type; the rest are claims the same bytes may legitimately
// carry.
type Signature struct {
	Name      string
	Prefix    []byte
	Offset    int
	MimeTypes []string
	Blocked   bool
	// Check, when set, must also accept the header. Short prefixes use it to
	// avoid matching plain text.
	Check func(header []byte) bool
}

func (s Signature) MimeType() string {
	return s.MimeTypes[0]
}

func (s Signature) matches(header []byte) bool {
	end := s.Offset + len(s.Prefix)
	if len(header) < end {
		return false
	}
	if !bytes.Equal(header[s.Offset:end], s.Prefix) {
		return false
	}
	return s.Check == nil || s.Check(header)
}

// bmpReserved requires the two reserved header words at offsets 6-9 to be zero.
func bmpReserved(header []byte) bool {
	if len(header) < 10 {
		return false
	}
	return bytes.Equal(header[6:10], []byte{0, 0, 0, 0})
}

// id3Version requires a v2.2-v2.4 major version and a revision below 0xFF.
func id3Version(header []byte) bool {
	if len(header) < 5 {
		return false
	}
	return header[3] >= 0x02 && header[3] <= 0x04 && header[4] < 0xFF
}

// signatures is evaluated in order. More specific entries come first: RIFF
// subtypes before bare RIFF, QuickTime before generic ftyp.
var signatures = []Signature{
	// blocked executables and scripts
	{Name: "pe", Prefix: []byte("MZ"), MimeTypes: []string{"application/x-msdownload", "application/x-dosexec", "application/vnd.microsoft.portable-executable"}, Blocked: true},
	{Name: "elf", Prefix: []byte{0x7F, 'E', 'L', 'F'}, MimeTypes: []string{"application/x-executable", "application/x-elf", "application/x-sharedlib"}, Blocked: true},
	{Name: "macho32", Prefix: []byte{0xFE, 0xED, 0xFA, 0xCE}, MimeTypes: []string{"application/x-mach-binary"}, Blocked: true},
	{Name: "macho64", Prefix: []byte{0xFE, 0xED, 0xFA, 0xCF}, MimeTypes: []string{"application/x-mach-binary"}, Blocked: true},
	{Name: "macho32le", Prefix: []byte{0xCE, 0xFA, 0xED, 0xFE}, MimeTypes: []string{"application/x-mach-binary"}, Blocked: true},
	{Name: "macho64le", Prefix: []byte{0xCF, 0xFA, 0xED, 0xFE}, MimeTypes: []string{"application/x-mach-binary"}, Blocked: true},
	{Name: "shebang", Prefix: []byte("#!"), MimeTypes: []string{"application/x-sh", "text/x-shellscript"}, Blocked: true},

	// images
	{Name: "jpeg", Prefix: []byte{0xFF, 0xD8, 0xFF}, MimeTypes: []string{"image/jpeg"}},
	{Name: "png", Prefix: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, MimeTypes: []string{"image/png"}},
	{Name: "gif87a", Prefix: []byte("GIF87a"), MimeTypes: []string{"image/gif"}},
	{Name: "gif89a", Prefix: []byte("GIF89a"), MimeTypes: []string{"image/gif"}},
	{Name: "webp", Prefix: []byte("WEBP"), Offset: 8, MimeTypes: []string{"image/webp"}},
	{Name: "wav", Prefix: []byte("WAVE"), Offset: 8, MimeTypes: []string{"audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave"}},
	{Name: "avi", Prefix: []byte("AVI "), Offset: 8, MimeTypes: []string{"video/x-msvideo", "video/avi"}},
	{Name: "riff", Prefix: []byte("RIFF"), MimeTypes: []string{"application/x-riff"}},
	{Name: "bmp", Prefix: []byte("BM"), MimeTypes: []string{"image/bmp", "image/x-ms-bmp"}, Check: bmpReserved},

	// video containers
	{Name: "quicktime", Prefix: []byte("qt  "), Offset: 8, MimeTypes: []string{"video/quicktime"}},
	{Name: "mp4", Prefix: []byte("ftyp"), Offset: 4, MimeTypes: []string{"video/mp4", "video/quicktime", "audio/mp4", "audio/x-m4a", "video/x-m4v", "image/heic", "image/avif"}},
	{Name: "ico", Prefix: []byte{0x00, 0x00, 0x01, 0x00}, MimeTypes: []string{"image/x-icon", "image/vnd.microsoft.icon"}},
	{Name: "matroska", Prefix: []byte{0x1A, 0x45, 0xDF, 0xA3}, MimeTypes: []string{"video/webm", "video/x-matroska", "audio/webm"}},

	// documents and archives
	{Name: "pdf", Prefix: []byte("%PDF-"), MimeTypes: []string{"application/pdf"}},
	{Name: "zip", Prefix: []byte{'P', 'K', 0x03, 0x04}, MimeTypes: []string{"application/zip", "application/x-zip-compressed"}},
	{Name: "zip_empty", Prefix: []byte{'P', 'K', 0x05, 0x06}, MimeTypes: []string{"application/zip", "application/x-zip-compressed"}},
	{Name: "zip_spanned", Prefix: []byte{'P', 'K', 0x07, 0x08}, MimeTypes: []string{"application/zip", "application/x-zip-compressed"}},
	{Name: "gzip", Prefix: []byte{0x1F, 0x8B}, MimeTypes: []string{"application/gzip", "application/x-gzip"}},
	{Name: "rar", Prefix: []byte{'R', 'a', 'r', '!', 0x1A, 0x07}, MimeTypes: []string{"application/vnd.rar", "application/x-rar-compressed"}},
	{Name: "7z", Prefix: []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}, MimeTypes: []string{"application/x-7z-compressed"}},
	{Name: "ole2", Prefix: []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, MimeTypes: []string{"application/x-cfb", "application/msword", "application/vnd.ms-excel", "application/vnd.ms-powerpoint", "application/vnd.ms-outlook"}},

	// audio
	{Name: "mp3_id3", Prefix: []byte("ID3"), MimeTypes: []string{"audio/mpeg"}, Check: id3Version},
	{Name: "mp3_mpeg1", Prefix: []byte{0xFF, 0xFB}, MimeTypes: []string{"audio/mpeg"}},
	{Name: "mp3_mpeg2", Prefix: []byte{0xFF, 0xF3}, MimeTypes: []string{"audio/mpeg"}},
	{Name: "mp3_mpeg25", Prefix: []byte{0xFF, 0xF2}, MimeTypes: []string{"audio/mpeg"}},
	{Name: "ogg", Prefix: []byte("OggS"), MimeTypes: []string{"audio/ogg", "video/ogg", "application/ogg", "audio/opus"}},
	{Name: "flac", Prefix: []byte("fLaC"), MimeTypes: []string{"audio/flac", "audio/x-flac"}},
}

// Signatures returns a copy of the ordered table.
func Signatures() []Signature {
	out := make([]Signature, len(signatures))
	copy(out, signatures)
	return out
}

// Detect returns the first signature matching header.
func Detect(header []byte) (Signature, bool) {
	for _, sig := range signatures {
		if sig.matches(header) {
			return sig, true
		}
	}
	return Signature{}, false
}
