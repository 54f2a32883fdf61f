package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/httpintercept/pkg/intercept"
	"github.com/jingkaihe/httpintercept/pkg/logging"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func okResponse(req *http.Request, body string, header http.Header) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func TestHandler_Forwards(t *testing.T) {
	var seen *http.Request
	h := NewHandler(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req
		return okResponse(req, "upstream", http.Header{
			"Content-Type": []string{"text/plain"},
			"Connection":   []string{"X-Private"},
			"X-Private":    []string{"1"},
			"Keep-Alive":   []string{"timeout=5"},
		}), nil
	}), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/a?b=c", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("Proxy-Authorization", "Basic xyz")
	req.Header.Set("Connection", "X-Hop")
	req.Header.Set("X-Hop", "1")
	req.Header.Set("X-Keep", "1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.Empty(t, seen.RequestURI)
	assert.Equal(t, "http://example.com/a?b=c", seen.URL.String())
	assert.Empty(t, seen.Header.Get("Proxy-Authorization"))
	assert.Empty(t, seen.Header.Get("X-Hop"))
	assert.Empty(t, seen.Header.Get("Connection"))
	assert.Equal(t, "1", seen.Header.Get("X-Keep"))
	assert.Equal(t, viaHeader, seen.Header.Get("Via"))
	assert.Equal(t, "192.0.2.1", seen.Header.Get("X-Forwarded-For"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "upstream", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("X-Private"))
	assert.Empty(t, rec.Header().Get("Keep-Alive"))
	assert.Equal(t, viaHeader, rec.Header().Get("Via"))
}

func TestHandler_AppendsForwardingChain(t *testing.T) {
	var seen *http.Request
	h := NewHandler(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req
		return okResponse(req, "", nil), nil
	}), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.RemoteAddr = "192.0.2.9:1"
	req.Header.Set("Via", "1.0 edge")
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "1.0 edge, "+viaHeader, seen.Header.Get("Via"))
	assert.Equal(t, "198.51.100.7, 192.0.2.9", seen.Header.Get("X-Forwarded-For"))
}

func TestHandler_Rejections(t *testing.T) {
	h := NewHandler(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatal("transport must not be called")
		return nil, nil
	}), nil, nil)

	rec := httptest.NewRecorder()
	connect := httptest.NewRequest(http.MethodConnect, "http://example.com:443", nil)
	h.ServeHTTP(rec, connect)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relative", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"dial failure", errors.New("connection refused"), http.StatusBadGateway},
		{"blocked by rule", errors.Join(intercept.ErrInterceptFailed, intercept.ErrBlocked), http.StatusForbidden},
		{"interceptor fault", errors.Join(intercept.ErrInterceptFailed, errors.New("read body file")), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(roundTripFunc(func(req *http.Request) (*http.Response, error) {
				return nil, tt.err
			}), nil, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestHandler_ClientGone(t *testing.T) {
	h := NewHandler(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, context.Canceled
	}), nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	assert.False(t, rec.Flushed)
	assert.Empty(t, rec.Body.String())
}

func TestHandler_StreamsEventStream(t *testing.T) {
	h := NewHandler(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		resp := okResponse(req, "data: a\n\ndata: b\n\n", http.Header{"Content-Type": []string{"text/event-stream"}})
		resp.ContentLength = -1
		return resp, nil
	}), nil, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/events", nil))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "data: a\n\ndata: b\n\n", rec.Body.String())
}

func TestHandler_WithInterceptor(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("real:" + r.Header.Get("X-Injected")))
	}))
	defer upstream.Close()

	sink := &captureSink{}
	emitter := logging.NewEmitter(logging.EmitterConfig{RunID: "run", Source: "proxy"}, sink)

	ic := intercept.New(intercept.WithEmitter(emitter))
	ic.AddPreprocessor(func(req *http.Request) { req.Header.Set("X-Injected", "yes") })
	ic.Add(func(req *http.Request) (*intercept.Response, error) {
		if req.URL.Path != "/stub" {
			return nil, nil
		}
		return &intercept.Response{Body: []byte("stubbed"), MIMEType: "text/plain"}, nil
	})

	proxySrv := httptest.NewServer(NewHandler(ic.Transport(&http.Transport{}), nil, emitter))
	defer proxySrv.Close()

	proxyURL, err := url.Parse(proxySrv.URL)
	require.NoError(t, err)
	client := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}

	body := func(u string) string {
		resp, err := client.Get(u)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(b)
	}

	assert.Equal(t, "real:yes", body(upstream.URL+"/real"))
	assert.Equal(t, "stubbed", body(upstream.URL+"/stub"))

	assert.Contains(t, sink.types(), logging.EventProxyResponse)
	assert.Contains(t, sink.types(), logging.EventIntercepted)
	assert.Contains(t, sink.types(), logging.EventPassthrough)
}

type captureSink struct {
	mu     sync.Mutex
	events []string
}

func (s *captureSink) Write(event *logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event.EventType)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func TestHandler_InterceptorFailureStatus(t *testing.T) {
	ic := intercept.New()
	ic.Add(func(req *http.Request) (*intercept.Response, error) {
		switch req.URL.Path {
		case "/denied":
			return nil, fmt.Errorf("%w: ads", intercept.ErrBlocked)
		case "/broken":
			return nil, errors.New("open fixture: permission denied")
		}
		return nil, nil
	})
	h := NewHandler(ic.Transport(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req, "upstream", nil), nil
	})), nil, nil)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/denied", http.StatusForbidden},
		{"/broken", http.StatusBadGateway},
		{"/ok", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com"+tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
