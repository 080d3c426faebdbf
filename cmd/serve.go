package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/schmidt-silas/mem0-for-owui/pkg/filter"
	"github.com/schmidt-silas/mem0-for-owui/pkg/service"
	"github.com/schmidt-silas/mem0-for-owui/pkg/service/sse"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the filter HTTP service",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			valves := filter.ValvesFromConfig()

			// Status events go out on the /events SSE stream.
			broker := sse.NewBroker()
			fltr := filter.New(valves, filter.WithNotifier(
				filter.NotifierFunc(func(ctx context.Context, event filter.StatusEvent) {
					broker.Publish(event)
				}),
			))
			srv := service.NewFilterServer(fltr, broker)

			if !viper.GetBool("filter.enabled") {
				fltr.SetEnabled(false)
			}

			addr := fmt.Sprintf("%s:%d", hostFlag, portFlag)
			log.Info("starting filter service", "addr", addr, "top_k", valves.TopK)

			return srv.Start(addr)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 9099, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
}

var longServe = `Serve exposes the memory filter over HTTP.

Endpoints:
  GET  /                  health
  GET  /events            SSE stream of filter status events
  GET  /v1/filter         filter metadata (toggle id, name, icon)
  POST /v1/filter/toggle  flip the filter on or off
  POST /v1/filter/inlet   pre-model hook: augment and record the user message
  POST /v1/filter/outlet  post-model hook: record the assistant reply
`
