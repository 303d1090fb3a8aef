package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"imgsync/internal/fileutil"
	"imgsync/internal/frontmatter"
)

// ErrVanished marks a document that disappeared between enumeration and use.
var ErrVanished = errors.New("document vanished")

// Codec is the header codec documents are parsed with.
type Codec interface {
	Parse(text string) (*frontmatter.Header, string, error)
	Serialize(header *frontmatter.Header, body string) (string, error)
}

// Document is one parsed source file.
type Document struct {
	Path     string
	Mode     os.FileMode
	Encoding Encoding
	Text     string
	Header   *frontmatter.Header
	Body     string
}

// Load reads and parses the file at path. Codec failures are returned wrapped
// so callers can match frontmatter.ErrMalformed.
func Load(path string, codec Codec) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrVanished, path)
		}
		return nil, fmt.Errorf("stat document: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrVanished, path)
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	enc := DetectEncoding(data)
	text, err := enc.Decode(data)
	if err != nil {
		return nil, err
	}

	header, body, err := codec.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &Document{
		Path:     path,
		Mode:     info.Mode().Perm(),
		Encoding: enc,
		Text:     text,
		Header:   header,
		Body:     body,
	}, nil
}

// Render serializes header and body with codec. The bool result is false when
// the rendered text equals the text the document was loaded with.
func (d *Document) Render(codec Codec, header *frontmatter.Header, body string) (string, bool, error) {
	text, err := codec.Serialize(header, body)
	if err != nil {
		return "", false, fmt.Errorf("serialize %s: %w", d.Path, err)
	}
	return text, text != d.Text, nil
}

// Save writes text back to the document's path in its original encoding,
// keeping the file mode. A document removed since Load is reported as ErrVanished
// and not recreated.
func (d *Document) Save(text string) error {
	if _, err := os.Stat(d.Path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrVanished, d.Path)
	}
	data, err := d.Encoding.Encode(text)
	if err != nil {
		return err
	}
	mode := d.Mode
	if mode == 0 {
		mode = 0o644
	}
	if err := fileutil.WriteFileAtomic(d.Path, data, mode); err != nil {
		return fmt.Errorf("write document %s: %w", d.Path, err)
	}
	return nil
}
