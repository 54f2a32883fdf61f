// Package intercept hooks outgoing net/http requests in process.
//
// An Interceptor keeps an ordered set of rules of three kinds:
//
//   - preprocessors mutate every outgoing request before it is sent
//   - interceptors may answer a request with a synthesized Response or fail it
//   - path mappings serve local files for a URL prefix
//
// Rules are registered with AddPreprocessor, Add and MapURL, each returning a
// Handle accepted by Remove. Interceptor.Transport returns an
// http.RoundTripper that runs the rules and delegates unmatched requests to a
// base transport:
//
//	ic := intercept.New()
//	h, _ := ic.MapURL("http://hello.com", "/tmp/content.txt")
//	defer ic.Remove(h)
//	client := &http.Client{Transport: ic.Transport(nil)}
//	resp, err := client.Get("http://hello.com/")
package intercept
