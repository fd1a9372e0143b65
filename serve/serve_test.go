package serve

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mhpenta/biochem-mcp/config"
	"github.com/mhpenta/biochem-mcp/tools"
)

type echoInput struct {
	Text string `json:"text" jsonschema:"text to echo"`
}

type echoOutput struct {
	Text string `json:"text"`
}

func echoApp() App {
	return App{
		Name:    "echo-mcp",
		Version: "0.0.1",
		Build: func(logger *slog.Logger) ([]tools.Tool, config.Auth, error) {
			echo := tools.NewTool("echo", "Echo the given text",
				func(ctx context.Context, in echoInput) (*echoOutput, error) {
					return &echoOutput{Text: in.Text}, nil
				})
			return []tools.Tool{echo}, config.Auth{HeaderType: "bearer"}, nil
		},
	}
}

func TestParseOptions_Defaults(t *testing.T) {
	opts, err := ParseOptions("test", nil)
	require.NoError(t, err)
	assert.Equal(t, Options{Transport: "stdio", Port: "8000", LogLevel: "info", LogFormat: "text"}, opts)
}

func TestParseOptions_FlagsAndEnv(t *testing.T) {
	t.Setenv("MCP_LOG_FORMAT", "json")

	opts, err := ParseOptions("test", []string{"-t", "sse", "--port", "9100", "--log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "sse", opts.Transport)
	assert.Equal(t, "9100", opts.Port)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.Equal(t, "json", opts.LogFormat)
}

func TestParseOptions_RejectsUnknownTransport(t *testing.T) {
	_, err := ParseOptions("test", []string{"--transport", "grpc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grpc")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Options{LogLevel: "warn", LogFormat: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	line := gjson.Parse(strings.TrimSpace(buf.String()))
	assert.Equal(t, "shown", line.Get("msg").String())
	assert.Equal(t, "v", line.Get("k").String())
	assert.NotContains(t, buf.String(), "hidden")
}

func TestRun_Stdio(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"test","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"text":"aspirin"}}}`,
	}, "\n")
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), echoApp(), []string{"--log-format", "json"}, strings.NewReader(in), &stdout, &stderr)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "echo-mcp", gjson.Get(lines[0], "result.serverInfo.name").String())
	assert.Equal(t, int64(2), gjson.Get(lines[1], "id").Int())
	assert.Contains(t, gjson.Get(lines[1], "result.content.0.text").String(), "aspirin")

	assert.Contains(t, stderr.String(), `"server":"echo-mcp"`)
}

func TestRun_Help(t *testing.T) {
	var stdout bytes.Buffer
	err := run(context.Background(), echoApp(), []string{"--help"}, strings.NewReader(""), &stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "--transport")
}

func TestRun_BuildError(t *testing.T) {
	app := echoApp()
	app.Build = func(*slog.Logger) ([]tools.Tool, config.Auth, error) {
		return nil, config.Auth{}, errors.New("parse env: boom")
	}
	err := run(context.Background(), app, nil, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, "build tools: parse env: boom", err.Error())
}
