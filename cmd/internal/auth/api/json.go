package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

var errUnsupportedMedia = errors.New("unsupported content type")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeRequest fills dst from a JSON body, or from form parameters when the
// request is form encoded. An empty Content-Type is treated as JSON.
func decodeRequest(w http.ResponseWriter, r *http.Request, maxBytes int64, dst formDecoder) error {
	ct := strings.TrimSpace(r.Header.Get("Content-Type"))
	if ct == "" {
		return decodeJSON(w, r, maxBytes, dst)
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return err
	}

	switch mt {
	case "application/json":
		return decodeJSON(w, r, maxBytes, dst)
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseForm(); err != nil {
			return err
		}
		dst.fromForm(r.PostForm)
		return nil
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return err
		}
		dst.fromForm(r.PostForm)
		return nil
	default:
		return errUnsupportedMedia
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
