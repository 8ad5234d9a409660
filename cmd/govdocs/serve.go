package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ArturGR3/AI-Hackathon/pkg/observability"
	"github.com/ArturGR3/AI-Hackathon/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question pipeline over HTTP",
	Long: `Starts an HTTP server with:

  POST /ask      {"question": "..."}
  GET  /healthz  store connectivity
  GET  /metrics  Prometheus metrics, when metrics are enabled

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to http.addr from the configuration)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) (err error) {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { err = closeApp(cmd, a, err) }()

	srv, err := newHTTPServer(a)
	if err != nil {
		return err
	}

	addr := a.cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return srv.ListenAndServe(a.context(cmd.Context()), addr, a.cfg.HTTP.ReadTimeout, a.cfg.HTTP.WriteTimeout)
}

func newHTTPServer(a *app) (*server.Server, error) {
	proc, err := a.processor()
	if err != nil {
		return nil, err
	}

	var page http.Handler
	if a.prom != nil {
		page = a.prom.Handler()
	}
	return server.New(proc,
		server.WithLogger(a.logger),
		server.WithMetrics(a.metrics, page),
		server.WithHealthChecks(observability.FuncHealthCheck{CheckName: "store", CheckFunc: a.store.Health}),
	), nil
}
