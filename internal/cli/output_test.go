package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("transport", "fetch rules: transport: connection refused", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "transport", resp.Error.Code)
	assert.Equal(t, "fetch rules: transport: connection refused", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"op": "write records", "backend": "sqlite"}
	err := formatter.Error("storage", "write records failed", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("✓ Synchronized 5 star log(s)")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Synchronized 5 star log(s)")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("transport", "fetch rules: transport: connection refused", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [transport]")
	assert.Contains(t, buf.String(), "fetch rules: transport: connection refused")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"op": "fetch rules"}
	err := formatter.Error("transport", "fetch rules: transport: connection refused", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [transport]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Read %d star log(s)", 3)

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Read 3 star log(s)")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"written": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "invalid",
		Message: "ruleset failed validation",
		Details: []string{"star_logs_max_limit: invalid value 0"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "invalid", decoded.Code)
	assert.Equal(t, "ruleset failed validation", decoded.Message)
}

func TestOutputFormatter_YAMLSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "yaml",
		Writer: buf,
	}

	data := struct {
		Height int64           `json:"height"`
		Events json.RawMessage `json:"events"`
	}{Height: 1700000000, Events: json.RawMessage(`[{"type":"reward"}]`)}
	require.NoError(t, formatter.Success(data))

	assert.Equal(t, "data:\n  events:\n    - type: reward\n  height: 1700000000\nstatus: ok\n", buf.String())
}

func TestOutputFormatter_YAMLError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "yaml",
		Writer: buf,
	}

	require.NoError(t, formatter.Error("storage", "disk full", nil))
	assert.Equal(t, "error:\n  code: storage\n  message: disk full\nstatus: error\n", buf.String())
}

func TestOutputFormatter_JSONDoesNotEscapeHTML(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("a<b>&c"))
	assert.Equal(t, `{"status":"ok","data":"a<b>&c"}`+"\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad flags"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "sync failed", errors.New("x"))), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapExitError(ExitFailure, "sync failed", cause)
	assert.Equal(t, "sync failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "bad flags", NewExitError(ExitCommandError, "bad flags").Error())
}

func TestIsReported(t *testing.T) {
	var buf bytes.Buffer
	formatter := &OutputFormatter{Format: "text", Writer: &buf}

	err := failWith(formatter, "sync failed", errors.New("connection refused"))
	assert.True(t, IsReported(err))
	assert.True(t, IsReported(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, "Error [unknown]: connection refused\n", buf.String())

	assert.False(t, IsReported(nil))
	assert.False(t, IsReported(errors.New("boom")))
	assert.False(t, IsReported(WrapExitError(ExitCommandError, "invalid flags", errors.New("x"))))
}
