package main

import (
	"fmt"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *opts.cfg
			if cfg.Auth.SigningKey != "" {
				cfg.Auth.SigningKey = "********"
			}
			if cfg.Redis.Password != "" {
				cfg.Redis.Password = "********"
			}
			fmt.Println(print.MaybePrettyJSON(cfg))
			return nil
		},
	}
}
