package main

import (
	"net/http"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jingkaihe/httpintercept/pkg/proxy"
	"github.com/jingkaihe/httpintercept/pkg/ruleset"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run an HTTP forward proxy that applies the rules",
	Long: `Run an HTTP forward proxy that applies the rules to every request.

Point clients at it with HTTP_PROXY. Plain HTTP only: CONNECT is refused.
The rules file is reloaded when it changes.`,
	Args: cobra.NoArgs,
	RunE: runProxy,
}

func init() {
	proxyCmd.Flags().String("listen", "127.0.0.1:8080", "Address to listen on")
	viper.BindPFlag("proxy.listen", proxyCmd.Flags().Lookup("listen"))

	rootCmd.AddCommand(proxyCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime("proxy")
	if err != nil {
		return err
	}
	defer rt.Close()

	ic := rt.interceptor()

	var watcher *ruleset.Watcher
	if rules := viper.GetString("rules"); rules != "" {
		watcher, err = ruleset.NewWatcher(rules, ic, rt.logger)
		if err != nil {
			return err
		}
		if err := watcher.Reload(); err != nil {
			return err
		}
		defer watcher.Close()
	}

	if viper.ConfigFileUsed() != "" {
		viper.OnConfigChange(func(e fsnotify.Event) {
			rt.logger.Info("config file changed", "path", e.Name)
			if watcher == nil {
				return
			}
			if p := viper.GetString("rules"); p != "" {
				if abs, err := filepath.Abs(p); err == nil && abs != watcher.Path() {
					rt.logger.Warn("rules path changed in config; restart to apply", "rules", abs)
				}
			}
			_ = watcher.Reload()
		})
		viper.WatchConfig()
	}

	ln, err := proxy.Listen(viper.GetString("proxy.listen"))
	if err != nil {
		return err
	}

	// Upstream requests go direct, never through an environment proxy.
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = nil
	handler := proxy.NewHandler(ic.Transport(base), rt.logger, rt.emitter)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return proxy.Serve(ctx, ln, handler, rt.logger)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}
	return g.Wait()
}
