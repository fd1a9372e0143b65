package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
)

// StdioTransport speaks newline-delimited JSON-RPC on stdin and stdout.
// Nothing else may be written to stdout; logs belong on stderr.
type StdioTransport struct {
	logger         *slog.Logger
	jsonrpcHandler *JSONRPCHandler
	reader         io.Reader
	writer         io.Writer
}

// NewStdioTransport creates a stdio transport (no auth needed for local process)
func NewStdioTransport(server *Server, logger *slog.Logger) *StdioTransport {
	return NewStdioTransportWithIO(server, logger, os.Stdin, os.Stdout)
}

// NewStdioTransportWithIO creates a stdio transport with custom reader/writer (for testing)
func NewStdioTransportWithIO(server *Server, logger *slog.Logger, reader io.Reader, writer io.Writer) *StdioTransport {
	return &StdioTransport{
		logger:         logger,
		jsonrpcHandler: NewJSONRPCHandler(server),
		reader:         reader,
		writer:         writer,
	}
}

// Start processes messages until the input ends or ctx is cancelled.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.logger.Info("starting MCP stdio transport")

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBody)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	out := bufio.NewWriter(t.writer)
	enc := json.NewEncoder(out)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("stdio transport shutting down")
			return nil

		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						t.logger.Error("scanner error", "error", err)
					}
					return err
				default:
					return nil
				}
			}

			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			responses, isBatch := t.jsonrpcHandler.HandleBatch(ctx, line)
			if len(responses) == 0 {
				continue
			}

			var payload interface{} = responses
			if !isBatch {
				payload = responses[0]
			}

			// Encode appends the newline that delimits messages.
			if err := enc.Encode(payload); err != nil {
				t.logger.Error("error writing response", "error", err)
				return err
			}
			if err := out.Flush(); err != nil {
				t.logger.Error("error flushing response", "error", err)
				return err
			}
		}
	}
}
