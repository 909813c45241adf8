package main

import (
	"encoding/json"
	"os"

	"github.com/ayerhssb/mcpSystem/internal/jobs"
	"github.com/ayerhssb/mcpSystem/pkg/rabbitmq"
	"github.com/spf13/cobra"
)

var pendingPublish bool

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Print the pending settlement report",
		Long: `Summarize payment transactions left pending because an MCP could not cover
a partner settlement, grouped by MCP. Nothing is modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := openEnvironment(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			var publisher jobs.Publisher
			if pendingPublish {
				producer, err := rabbitmq.NewEventProducer(env.cfg.RabbitMQURL, env.log)
				if err != nil {
					return err
				}
				defer producer.Close()
				publisher = producer
			}

			report, err := jobs.NewJobs(env.repo, publisher, env.cfg.EventsExchange, env.log).ReportPendingSettlements(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&pendingPublish, "publish", false, "also publish the report to the events exchange")
	return cmd
}
