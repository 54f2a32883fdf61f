package intercept

import (
	"net/http"
	"sync"
)

var (
	defaultOnce sync.Once
	defaultIC   *Interceptor
)

// Default returns the process-wide Interceptor, creating it on first use.
func Default() *Interceptor {
	defaultOnce.Do(func() {
		defaultIC = New()
	})
	return defaultIC
}

// AddPreprocessor registers fn on the default Interceptor.
func AddPreprocessor(fn PreprocessFunc) Handle { return Default().AddPreprocessor(fn) }

// Add registers fn on the default Interceptor.
func Add(fn InterceptFunc) Handle { return Default().Add(fn) }

// MapURL registers a path mapping on the default Interceptor.
func MapURL(base, localPath string) (Handle, error) { return Default().MapURL(base, localPath) }

// Remove unregisters h from the default Interceptor.
func Remove(h Handle) { Default().Remove(h) }

// Install routes client through the default Interceptor. The client's
// current transport becomes the pass-through transport. Installing twice,
// or installing a client with no transport after InstallDefaultTransport,
// is a no-op.
func Install(client *http.Client) {
	if client == nil {
		return
	}
	rt := client.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	if t, ok := rt.(*Transport); ok && t.ic == Default() {
		return
	}
	client.Transport = Default().Transport(client.Transport)
}

// InstallDefaultTransport replaces http.DefaultTransport with the default
// Interceptor's transport, so http.Get and clients without an explicit
// transport are intercepted. The returned function restores the previous
// transport.
func InstallDefaultTransport() (restore func()) {
	prev := http.DefaultTransport
	if t, ok := prev.(*Transport); ok && t.ic == Default() {
		return func() {}
	}
	http.DefaultTransport = Default().Transport(prev)
	return func() { http.DefaultTransport = prev }
}
