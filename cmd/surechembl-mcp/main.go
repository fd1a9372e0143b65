package main

import (
	"log/slog"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/serve"
	"github.com/mhpenta/biochem-mcp/surechembl"
	"github.com/mhpenta/biochem-mcp/tools"
)

var version = "dev"

func main() {
	serve.Main(serve.App{
		Name:    "surechembl-mcp",
		Version: version,
		Build: func(logger *slog.Logger) ([]tools.Tool, config.Auth, error) {
			cfg, err := config.Load[config.SureChEMBL]()
			if err != nil {
				return nil, config.Auth{}, err
			}
			client, err := surechembl.NewClient(cfg, logger)
			if err != nil {
				return nil, config.Auth{}, err
			}
			return surechembl.Tools(client, logger), cfg.Auth, nil
		},
	})
}
