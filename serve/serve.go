// Package serve is the shared entry point of every database server: it parses
// the command line, builds the logger and runs the selected MCP transport
// until the process receives SIGINT or SIGTERM.
package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/mcp"
	"github.com/mhpenta/biochem-mcp/tools"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// Options are the command line flags shared by all servers.
type Options struct {
	Transport string `short:"t" long:"transport" env:"MCP_TRANSPORT" default:"stdio" choice:"stdio" choice:"http" choice:"sse" description:"MCP transport"`
	Port      string `short:"p" long:"port" env:"MCP_PORT" default:"8000" description:"listen port for the http and sse transports"`
	LogLevel  string `long:"log-level" env:"MCP_LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"minimum log level"`
	LogFormat string `long:"log-format" env:"MCP_LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"log output format"`
}

// App describes one server. Build runs after the logger exists and returns
// the tools to register together with the auth settings for HTTP transports.
type App struct {
	Name    string
	Version string
	Build   func(logger *slog.Logger) ([]tools.Tool, config.Auth, error)
}

// Run serves app with the process arguments and standard streams.
func Run(app App, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, app, args, os.Stdin, os.Stdout, os.Stderr)
}

// Main is Run for a main function: it exits non-zero on failure.
func Main(app App) {
	if err := Run(app, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", app.Name, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app App, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := ParseOptions(app.Name, args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return nil
		}
		return err
	}

	logger, err := NewLogger(opts, stderr)
	if err != nil {
		return err
	}
	logger = logger.With("server", app.Name)

	ts, auth, err := app.Build(logger)
	if err != nil {
		return fmt.Errorf("build tools: %w", err)
	}

	server, err := mcp.NewServer(mcp.ServerConfig{
		Name:    app.Name,
		Version: app.Version,
		Tools:   ts,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	validator := mcp.NewStaticKeyValidator(auth.APIKeys)
	headerType := mcp.AuthHeaderType(strings.ToLower(auth.HeaderType))
	if validator != nil {
		logger.Info("API key authentication enabled", "header", headerType, "keys", len(auth.APIKeys))
	}

	switch opts.Transport {
	case TransportHTTP:
		return mcp.NewHTTPTransport(server, logger, validator).
			WithAuthHeaderType(headerType).
			Start(ctx, opts.Port)
	case TransportSSE:
		return mcp.NewSSETransport(server, logger, validator).
			WithAuthHeaderType(headerType).
			Start(ctx, opts.Port)
	default:
		return mcp.NewStdioTransportWithIO(server, logger, stdin, stdout).Start(ctx)
	}
}

// ParseOptions parses args, falling back to the MCP_* environment variables
// and then the defaults.
func ParseOptions(name string, args []string) (Options, error) {
	var opts Options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = name
	if _, err := parser.ParseArgs(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// NewLogger writes to w, which must not be stdout when the stdio transport is
// in use.
func NewLogger(opts Options, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", opts.LogLevel, err)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}
