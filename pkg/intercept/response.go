package intercept

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Response is a synthesized answer to an intercepted request.
type Response struct {
	// StatusCode defaults to 200 when zero.
	StatusCode int
	Body       []byte
	// MIMEType is sniffed from Body when empty.
	MIMEType string
	// Encoding is the text encoding appended as the charset parameter.
	Encoding string
	// Header holds extra response headers. Values set here win over the
	// generated Content-Type.
	Header http.Header
}

func (r *Response) statusCode() int {
	if r.StatusCode == 0 {
		return http.StatusOK
	}
	return r.StatusCode
}

func (r *Response) contentType() string {
	mt := strings.TrimSpace(r.MIMEType)
	if mt == "" {
		if len(r.Body) == 0 {
			return ""
		}
		mt = mimetype.Detect(r.Body).String()
	}
	enc := strings.TrimSpace(r.Encoding)
	if enc != "" && !strings.Contains(strings.ToLower(mt), "charset=") {
		mt += "; charset=" + enc
	}
	return mt
}

// toHTTP renders r as the response to req.
func (r *Response) toHTTP(req *http.Request) *http.Response {
	status := r.statusCode()

	header := make(http.Header, len(r.Header)+2)
	if ct := r.contentType(); ct != "" {
		header.Set("Content-Type", ct)
	}
	for k, values := range r.Header {
		header[http.CanonicalHeaderKey(k)] = append([]string(nil), values...)
	}
	header.Set("Content-Length", strconv.Itoa(len(r.Body)))

	var body io.ReadCloser = io.NopCloser(bytes.NewReader(r.Body))
	if req != nil && req.Method == http.MethodHead {
		body = http.NoBody
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          body,
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}
