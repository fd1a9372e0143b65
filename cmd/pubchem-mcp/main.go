package main

import (
	"log/slog"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/pubchem"
	"github.com/mhpenta/biochem-mcp/serve"
	"github.com/mhpenta/biochem-mcp/tools"
)

var version = "dev"

func main() {
	serve.Main(serve.App{
		Name:    "pubchem-mcp",
		Version: version,
		Build: func(logger *slog.Logger) ([]tools.Tool, config.Auth, error) {
			cfg, err := config.Load[config.PubChem]()
			if err != nil {
				return nil, config.Auth{}, err
			}
			client, err := pubchem.NewClient(cfg, logger)
			if err != nil {
				return nil, config.Auth{}, err
			}
			return pubchem.Tools(client, logger), cfg.Auth, nil
		},
	})
}
