package logging

import (
	"encoding/json"
	"time"
)

// Event is the canonical structured record of one interception decision.
// Required fields: Timestamp, RunID, Source, EventType, Summary.
type Event struct {
	Timestamp time.Time       `json:"ts"`
	RunID     string          `json:"run_id"`
	Source    string          `json:"source"`
	EventType string          `json:"event_type"`
	Summary   string          `json:"summary"`
	Rule      string          `json:"rule,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

const (
	EventHTTPRequest     = "http_request"
	EventPreprocessed    = "preprocessed"
	EventIntercepted     = "intercepted"
	EventMapped          = "mapped"
	EventPassthrough     = "passthrough"
	EventInterceptFailed = "intercept_failed"
	EventProxyResponse   = "proxy_response"
)

// HTTPRequestData is the data payload for http_request and passthrough events.
type HTTPRequestData struct {
	Method string `json:"method"`
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Path   string `json:"path"`
}

// PreprocessData is the data payload for preprocessed events.
type PreprocessData struct {
	Method        string `json:"method"`
	Host          string `json:"host"`
	Path          string `json:"path"`
	Preprocessors int    `json:"preprocessors"`
}

// InterceptData is the data payload for intercepted, mapped and
// intercept_failed events.
type InterceptData struct {
	Method     string `json:"method"`
	Host       string `json:"host"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	BodyBytes  int64  `json:"body_bytes,omitempty"`
	LocalPath  string `json:"local_path,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ProxyResponseData is the data payload for proxy_response events.
type ProxyResponseData struct {
	Method     string `json:"method"`
	Host       string `json:"host"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}
