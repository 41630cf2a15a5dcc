package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
)

// Form is a multipart/form-data body. The boundary, and so the full
// Content-Type, is chosen when the form is encoded.
type Form struct {
	parts []formPart
}

type formPart struct {
	field    string
	filename string
	value    []byte
}

func NewForm() *Form { return &Form{} }

// Field adds a plain text field.
func (f *Form) Field(name, value string) *Form {
	f.parts = append(f.parts, formPart{field: name, value: []byte(value)})
	return f
}

// File adds a file part. Its content type is guessed from the file name.
func (f *Form) File(name, filename string, content []byte) *Form {
	f.parts = append(f.parts, formPart{field: name, filename: filename, value: content})
	return f
}

func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range f.parts {
		if p.filename == "" {
			if err := w.WriteField(p.field, string(p.value)); err != nil {
				return nil, "", err
			}
			continue
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		h.Set("Content-Type", fileContentType(p.filename))
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(p.value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func fileContentType(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// encodeBody returns the bytes and Content-Type for a request body. The
// bytes are produced once so a retry resends the identical payload.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, contentTypeJSON, nil
	case *Form:
		return b.encode()
	case json.RawMessage:
		return b, contentTypeJSON, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return raw, contentTypeJSON, nil
	}
}

const contentTypeJSON = "application/json"
