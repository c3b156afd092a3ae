package apiclient

import (
	"bytes"
	"mime"
	"net/http"
	"strings"
)

// NormalizedResponse is a response reduced to status, lower-cased headers and
// a decoded body.
type NormalizedResponse struct {
	Status  int               `json:"status"`
	Data    any               `json:"data"`
	Headers map[string]string `json:"headers"`
}

// JSON returns the body as an object when it decoded to one.
func (r *NormalizedResponse) JSON() (map[string]any, bool) {
	obj, ok := r.Data.(map[string]any)
	return obj, ok
}

// Text returns the body when it was not decoded as JSON.
func (r *NormalizedResponse) Text() (string, bool) {
	s, ok := r.Data.(string)
	return s, ok
}

// Header looks up a header by case-insensitive name.
func (r *NormalizedResponse) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

func normalize(status int, header http.Header, body []byte) *NormalizedResponse {
	headers := make(map[string]string, len(header))
	for k, v := range header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return &NormalizedResponse{
		Status:  status,
		Data:    decodeBody(header.Get("Content-Type"), body),
		Headers: headers,
	}
}

// isJSON reports whether a content type declares JSON, including +json
// suffix types such as application/problem+json.
func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// decodeBody decodes JSON bodies into generic values and returns everything
// else as text. Malformed or empty JSON decodes to nil.
func decodeBody(contentType string, body []byte) any {
	if !isJSON(contentType) {
		return string(body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}
