// Package httpapi carries the persistence gateway over HTTP.
//
// Routes, relative to a base URL:
//
//	GET  /draft        -> 200 types.Draft | 404
//	PUT  /steps/{step} -> 200 types.SaveStepResult
//	POST /finalize     -> 204
//	GET  /uploads/{id} -> 200 file bytes | 404 (gateways implementing UploadOpener)
//
// Step saves without uploads are JSON ({"fields": {...}}). Steps with uploads
// are multipart: text fields as single values, list fields as repeated
// "key[]" values and each staged file as a file part named by its field key.
// A list without items is sent as one "key[0]" value so it survives the trip.
// List items are kept verbatim, empty strings included, matching JSON.
// The draft key travels in the X-Draft-Key header.
package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"

	"github.com/tbxark/stepform/types"
)

const (
	HeaderDraftKey  = "X-Draft-Key"
	listSuffix      = "[]"
	emptyListSuffix = "[0]"
	maxFormMemory   = 32 << 20
)

type fieldsBody struct {
	Fields map[string]any `json:"fields"`
}

type errorBody struct {
	Error string `json:"error"`
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway responded %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("gateway responded %d: %s", e.Code, e.Message)
}

// encodeMultipart writes fields and uploads and returns the content type.
func encodeMultipart(w io.Writer, fields map[string]any, uploads []types.StagedFile) (string, error) {
	mw := multipart.NewWriter(w)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		switch v := fields[key].(type) {
		case []string:
			if len(v) == 0 {
				if err := mw.WriteField(key+emptyListSuffix, ""); err != nil {
					return "", err
				}
				continue
			}
			for _, item := range v {
				if err := mw.WriteField(key+listSuffix, item); err != nil {
					return "", err
				}
			}
		case string:
			if err := mw.WriteField(key, v); err != nil {
				return "", err
			}
		default:
			return "", fmt.Errorf("field %q: cannot encode %T as form value", key, v)
		}
	}
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, u.Key, u.File.Name))
		contentType := u.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(part, bytes.NewReader(u.File.Data)); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}

// decodeMultipart is the inverse of encodeMultipart.
func decodeMultipart(r *http.Request) (map[string]any, []types.StagedFile, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, nil, fmt.Errorf("parse multipart: %w", err)
	}
	fields := map[string]any{}
	for key, values := range r.MultipartForm.Value {
		if name, ok := strings.CutSuffix(key, listSuffix); ok {
			fields[name] = slices.Clone(values)
			continue
		}
		if name, ok := strings.CutSuffix(key, emptyListSuffix); ok {
			if _, set := fields[name]; !set {
				fields[name] = []string{}
			}
			continue
		}
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	var uploads []types.StagedFile
	for _, key := range slices.Sorted(maps.Keys(r.MultipartForm.File)) {
		headers := r.MultipartForm.File[key]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open upload %q: %w", key, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read upload %q: %w", key, err)
		}
		uploads = append(uploads, types.StagedFile{Key: key, File: types.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		}})
	}
	return fields, uploads, nil
}
