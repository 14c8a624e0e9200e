package form

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"
)

const defaultContentType = "application/octet-stream"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Encode returns a reader producing the multipart/form-data encoding of parts
// and the matching Content-Type header value.
//
// The body is written on a separate goroutine through a pipe, so stream
// values are only read as the returned reader is consumed. The caller must
// read the body to EOF or close it.
func Encode(parts []Part) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	contentType := w.FormDataContentType()

	go func() {
		for _, p := range parts {
			if err := writePart(w, p); err != nil {
				_ = pw.CloseWithError(fmt.Errorf("write part %q: %w", p.Name, err))
				return
			}
		}
		if err := w.Close(); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("close form: %w", err))
			return
		}
		_ = pw.Close()
	}()

	return pr, contentType
}

func writePart(w *multipart.Writer, p Part) error {
	h, r, err := describe(p)
	if err != nil {
		return err
	}
	dst, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, r)
	return err
}

// describe resolves the MIME header and content reader of a part.
func describe(p Part) (textproto.MIMEHeader, io.Reader, error) {
	var (
		filename    string
		contentType string
		r           io.Reader
	)
	switch c := p.Content.(type) {
	case NamedReader:
		filename = filepath.Base(c.Name())
		r = c
	case *FilePart:
		filename = c.Options.Filename
		contentType = c.Options.ContentType
		switch v := c.Value.(type) {
		case []byte:
			r = bytes.NewReader(v)
		case string:
			r = strings.NewReader(v)
		case io.Reader:
			r = v
		default:
			return nil, nil, fmt.Errorf("unsupported value of type %T", c.Value)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported content of type %T", p.Content)
	}

	if contentType == "" && filename != "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(p.Name))
	if filename != "" {
		disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(filename))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", disposition)
	h.Set("Content-Type", contentType)
	return h, r, nil
}
