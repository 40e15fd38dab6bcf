package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
)

// Image is the image part of a write. Exactly one of File or URL is used;
// File wins when both are set.
type Image struct {
	File     io.Reader
	Filename string
	URL      string
}

func (img *Image) empty() bool {
	return img == nil || (img.File == nil && img.URL == "")
}

type formField struct {
	name  string
	value string
}

// multipartRequest encodes fields and an optional image. The payload is
// buffered so the request can be replayed after a token refresh.
func multipartRequest(method, path string, fields []formField, img *Image) (*request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if !img.empty() {
		if img.File != nil {
			name := filepath.Base(img.Filename)
			if name == "." || name == "/" || name == "" {
				name = "upload"
			}
			part, err := w.CreateFormFile("image", name)
			if err != nil {
				return nil, fmt.Errorf("create image part: %w", err)
			}
			if _, err := io.Copy(part, img.File); err != nil {
				return nil, fmt.Errorf("copy image: %w", err)
			}
		} else if err := w.WriteField("image_url", img.URL); err != nil {
			return nil, fmt.Errorf("write image_url: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}
	return &request{
		method:      method,
		path:        path,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, nil
}
