package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-hostif/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{input: "trace", want: logging.LevelTrace},
		{input: "DEBUG", want: logging.LevelDebug},
		{input: " info ", want: logging.LevelInfo},
		{input: "warning", want: logging.LevelWarn},
		{input: "err", want: logging.LevelError},
		{input: "loud", wantErr: true},
		{input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		input   string
		base    logging.Level
		comps   map[string]logging.Level
		wantErr bool
	}{
		{input: "", base: logging.LevelInfo, comps: map[string]logging.Level{}},
		{input: "debug", base: logging.LevelDebug, comps: map[string]logging.Level{}},
		{input: "warn,manager=debug,store=trace", base: logging.LevelWarn, comps: map[string]logging.Level{
			"manager": logging.LevelDebug,
			"store":   logging.LevelTrace,
		}},
		{input: "netdev=error", base: logging.LevelInfo, comps: map[string]logging.Level{"netdev": logging.LevelError}},
		{input: "manager=debug,warn", wantErr: true},
		{input: "info,=debug", wantErr: true},
		{input: "info,manager=chatty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			spec, err := logging.ParseSpec(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.base, spec.BaseLevel)
			assert.Equal(t, tt.comps, spec.Components)
		})
	}
}

func TestSpec_StringRoundTrips(t *testing.T) {
	spec, err := logging.ParseSpec("warn,store=trace,manager=debug")
	require.NoError(t, err)
	assert.Equal(t, "warn,manager=debug,store=trace", spec.String())

	again, err := logging.ParseSpec(spec.String())
	require.NoError(t, err)
	assert.Equal(t, spec, again)
}

func TestFilteringHandler_ComponentLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{CLISpec: "warn,manager=debug,store=trace", Output: &buf})
	require.NoError(t, err)

	logger.Debug("root debug")
	assert.Empty(t, buf.String())
	logger.Warn("root warn")
	assert.Contains(t, buf.String(), "root warn")

	buf.Reset()
	mgr := logger.With(logging.ComponentKey, "manager")
	mgr.Debug("manager debug")
	assert.Contains(t, buf.String(), "manager debug")

	buf.Reset()
	mgr.WithGroup("trap").Debug("grouped debug")
	assert.Contains(t, buf.String(), "grouped debug", "groups keep the component")

	buf.Reset()
	logger.With(logging.ComponentKey, "store").Log(context.Background(), logging.LevelTrace.ToSlog(), "store trace")
	assert.Contains(t, buf.String(), "level=TRACE")

	buf.Reset()
	logger.With(logging.ComponentKey, "server").Info("server info")
	assert.Empty(t, buf.String(), "unlisted components use the base level")
}

func TestFilteringHandler_ComponentOnRecord(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{CLISpec: "warn,manager=debug", Output: &buf})
	require.NoError(t, err)

	logger.Debug("per call", logging.ComponentKey, "manager")
	assert.Contains(t, buf.String(), "per call")
}

func TestNew_Precedence(t *testing.T) {
	tests := []struct {
		name string
		opts logging.Options
		want slog.Level
	}{
		{"cli over env", logging.Options{CLISpec: "error", EnvSpec: "debug", ConfigSpec: "info"}, slog.LevelError},
		{"env over config", logging.Options{EnvSpec: "debug", ConfigSpec: "warn"}, slog.LevelDebug},
		{"config last", logging.Options{ConfigSpec: "warn"}, slog.LevelWarn},
		{"default info", logging.Options{}, slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.opts.Output = &buf
			logger, err := logging.New(tt.opts)
			require.NoError(t, err)
			ctx := context.Background()
			assert.True(t, logger.Enabled(ctx, tt.want))
			assert.False(t, logger.Enabled(ctx, tt.want-1))
		})
	}
}

func TestNew_JSONAndBadSpec(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: logging.FormatJSON, Output: &buf})
	require.NoError(t, err)
	logger.Info("hello", "id", "oid:0x1")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = logging.New(logging.Options{CLISpec: "verbose"})
	assert.Error(t, err)

	_, err = logging.ParseFormat("xml")
	assert.Error(t, err)
}
