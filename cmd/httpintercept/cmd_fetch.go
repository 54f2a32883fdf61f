package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/httpintercept/internal/errx"
	"github.com/jingkaihe/httpintercept/pkg/ruleset"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Perform one request through the rules",
	Example: `  httpintercept fetch --rules rules.yaml https://api.example.com/v1/users
  httpintercept fetch -X POST -H 'Content-Type: application/json' -d '{"a":1}' http://hello.com/`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringP("request", "X", http.MethodGet, "HTTP method")
	fetchCmd.Flags().StringArrayP("header", "H", nil, "Request header 'Name: value' (can be repeated)")
	fetchCmd.Flags().StringP("data", "d", "", "Request body")
	fetchCmd.Flags().BoolP("include", "i", false, "Print the status line and response headers")
	fetchCmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")

	viper.BindPFlag("fetch.timeout", fetchCmd.Flags().Lookup("timeout"))

	rootCmd.AddCommand(fetchCmd)
}

type fetchOptions struct {
	URL     string
	Method  string
	Headers []string
	Body    string
	Include bool
	Timeout time.Duration
}

func runFetch(cmd *cobra.Command, args []string) error {
	method, _ := cmd.Flags().GetString("request")
	headers, _ := cmd.Flags().GetStringArray("header")
	body, _ := cmd.Flags().GetString("data")
	include, _ := cmd.Flags().GetBool("include")

	rt, err := newRuntime("fetch")
	if err != nil {
		return err
	}
	defer rt.Close()

	ic := rt.interceptor()
	if rules := viper.GetString("rules"); rules != "" {
		set, err := ruleset.LoadAndApply(rules, ic, rt.logger)
		if err != nil {
			return err
		}
		defer set.Remove()
		rt.logger.Debug("rules applied", "path", rules, "rules", set.Len())
	}

	client := &http.Client{Transport: ic.Transport(nil)}
	return fetch(cmd.Context(), client, fetchOptions{
		URL:     args[0],
		Method:  method,
		Headers: headers,
		Body:    body,
		Include: include,
		Timeout: viper.GetDuration("fetch.timeout"),
	}, cmd.OutOrStdout())
}

func fetch(ctx context.Context, client *http.Client, opts fetchOptions, out io.Writer) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, opts.URL, body)
	if err != nil {
		return errx.Wrap(ErrBuildRequest, err)
	}
	for _, h := range opts.Headers {
		name, value, err := parseHeader(h)
		if err != nil {
			return err
		}
		req.Header.Add(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errx.Wrap(ErrFetch, err)
	}
	defer resp.Body.Close()

	if opts.Include {
		writeResponseHead(out, resp)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		return errx.Wrap(ErrFetch, err)
	}
	return nil
}

func parseHeader(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return "", "", errx.With(ErrInvalidHeader, ": %q (want 'Name: value')", s)
	}
	return name, strings.TrimSpace(value), nil
}

func writeResponseHead(w io.Writer, resp *http.Response) {
	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	fmt.Fprintf(w, "%s %s\n", proto, status)

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			fmt.Fprintf(w, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintln(w)
}
