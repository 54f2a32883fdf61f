// Package proxy serves an HTTP forward proxy whose upstream is an
// http.RoundTripper, typically an intercept.Transport.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jingkaihe/httpintercept/pkg/intercept"
	"github.com/jingkaihe/httpintercept/pkg/logging"
)

const viaHeader = "1.1 httpintercept"

// hopByHopHeaders are connection-specific and never forwarded.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Handler forwards absolute-form proxy requests through a RoundTripper.
type Handler struct {
	transport http.RoundTripper
	logger    *slog.Logger
	emitter   *logging.Emitter // nil means no event logging
}

// NewHandler creates a Handler. A nil transport means http.DefaultTransport.
func NewHandler(transport http.RoundTripper, logger *slog.Logger, emitter *logging.Emitter) *Handler {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		transport: transport,
		logger:    logger.With("component", "proxy"),
		emitter:   emitter,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	if req.Method == http.MethodConnect {
		h.logger.Debug("CONNECT rejected", "host", req.Host)
		writeError(w, http.StatusMethodNotAllowed, "CONNECT is not supported")
		h.emitResponse(req, http.StatusMethodNotAllowed, start, nil)
		return
	}
	if !req.URL.IsAbs() {
		writeError(w, http.StatusBadRequest, "proxy requests must use an absolute URL")
		h.emitResponse(req, http.StatusBadRequest, start, nil)
		return
	}

	out := req.Clone(req.Context())
	out.RequestURI = ""
	out.Header = forwardHeaders(req)
	if req.ContentLength == 0 {
		out.Body = nil
	}

	resp, err := h.transport.RoundTrip(out)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.Debug("client went away", "url", req.URL.String())
			return
		}
		status, msg := failureStatus(err)
		h.logger.Debug("proxy request failed", "method", req.Method, "url", req.URL.String(), "status", status, "error", err)
		writeError(w, status, msg)
		h.emitResponse(req, status, start, err)
		return
	}
	defer resp.Body.Close()

	removeHopByHop(resp.Header)
	copyHeader(w.Header(), resp.Header)
	w.Header().Add("Via", viaHeader)
	w.WriteHeader(resp.StatusCode)

	if err := copyBody(w, resp); err != nil {
		h.logger.Debug("response copy interrupted", "url", req.URL.String(), "error", err)
	}

	h.logger.Debug("proxied",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	h.emitResponse(req, resp.StatusCode, start, nil)
}

// failureStatus maps a round-trip error to the status sent to the client.
// Only a rule that blocks the request yields 403; an interceptor that
// failed for any other reason is a gateway fault like an upstream error.
func failureStatus(err error) (int, string) {
	switch {
	case errors.Is(err, intercept.ErrBlocked):
		return http.StatusForbidden, "blocked by rule"
	case errors.Is(err, intercept.ErrInterceptFailed):
		return http.StatusBadGateway, "interceptor failed"
	default:
		return http.StatusBadGateway, "upstream request failed"
	}
}

func (h *Handler) emitResponse(req *http.Request, status int, start time.Time, err error) {
	if h.emitter == nil {
		return
	}
	duration := time.Since(start)
	data := &logging.ProxyResponseData{
		Method:     req.Method,
		Host:       req.URL.Host,
		Path:       req.URL.Path,
		StatusCode: status,
		DurationMS: duration.Milliseconds(),
	}
	if data.Host == "" {
		data.Host = req.Host
	}
	if err != nil {
		data.Error = err.Error()
	}
	summary := fmt.Sprintf("%s %s%s -> %d (%dms)", req.Method, data.Host, data.Path, status, duration.Milliseconds())
	_ = h.emitter.Emit(logging.EventProxyResponse, summary, "", []string{"proxy"}, data)
}

// forwardHeaders copies the client's headers minus hop-by-hop ones and adds
// Via and X-Forwarded-For.
func forwardHeaders(req *http.Request) http.Header {
	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	removeHopByHop(header)

	if via := header.Get("Via"); via != "" {
		header.Set("Via", via+", "+viaHeader)
	} else {
		header.Set("Via", viaHeader)
	}

	if ip, _, err := net.SplitHostPort(req.RemoteAddr); err == nil && ip != "" {
		if prior := header.Get("X-Forwarded-For"); prior != "" {
			header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			header.Set("X-Forwarded-For", ip)
		}
	}
	return header
}

// removeHopByHop deletes hop-by-hop headers, including any named in
// Connection.
func removeHopByHop(header http.Header) {
	for _, v := range header.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				header.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		header.Del(name)
	}
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

// copyBody streams the body, flushing after each write for event streams
// and unknown-length bodies.
func copyBody(w http.ResponseWriter, resp *http.Response) error {
	if !isStreamingResponse(resp) {
		_, err := io.Copy(w, resp.Body)
		return err
	}

	rc := http.NewResponseController(w)
	buf := make([]byte, 4*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return err
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

func isStreamingResponse(resp *http.Response) bool {
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "text/event-stream") {
		return true
	}
	return resp.ContentLength == -1
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, message)
}
