package document

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Encoding identifies how a source file's text is stored on disk.
type Encoding int

const (
	UTF8 Encoding = iota
	UTF8BOM
	UTF16LE
	UTF16BE
)

func (e Encoding) String() string {
	switch e {
	case UTF8BOM:
		return "utf-8-bom"
	case UTF16LE:
		return "utf-16le"
	case UTF16BE:
		return "utf-16be"
	default:
		return "utf-8"
	}
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding inspects the byte order mark. Text without one is UTF-8.
func DetectEncoding(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return UTF8BOM
	case bytes.HasPrefix(data, bomUTF16LE):
		return UTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return UTF16BE
	default:
		return UTF8
	}
}

func (e Encoding) codec() encoding.Encoding {
	switch e {
	case UTF8BOM:
		return unicode.UTF8BOM
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	default:
		return nil
	}
}

// Decode converts raw file bytes into text. Plain UTF-8 passes through
// untouched, including invalid sequences.
func (e Encoding) Decode(data []byte) (string, error) {
	enc := e.codec()
	if enc == nil {
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", e, err)
	}
	return string(out), nil
}

// Encode converts text back to file bytes, restoring the byte order mark.
func (e Encoding) Encode(text string) ([]byte, error) {
	enc := e.codec()
	if enc == nil {
		return []byte(text), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e, err)
	}
	return out, nil
}
