package main

import (
	"log/slog"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/opentargets"
	"github.com/mhpenta/biochem-mcp/serve"
	"github.com/mhpenta/biochem-mcp/tools"
)

var version = "dev"

func main() {
	serve.Main(serve.App{
		Name:    "opentargets-mcp",
		Version: version,
		Build: func(logger *slog.Logger) ([]tools.Tool, config.Auth, error) {
			cfg, err := config.Load[config.OpenTargets]()
			if err != nil {
				return nil, config.Auth{}, err
			}
			client, err := opentargets.NewClient(cfg, logger)
			if err != nil {
				return nil, config.Auth{}, err
			}
			return opentargets.Tools(client, logger), cfg.Auth, nil
		},
	})
}
