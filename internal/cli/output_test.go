package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidemark/sealpost/internal/record"
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

	var resp envelope
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Fault)
}

func TestOutputFormatter_JSONFault(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Fault(record.NewStaleLength("alice", 3, 5))
	require.NoError(t, err)

	var resp envelope
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "rejected", resp.Status)
	require.NotNil(t, resp.Fault)
	assert.Equal(t, "STALE_LENGTH", resp.Fault.Code)
	assert.Equal(t, "alice", resp.Fault.Identity)
	require.NotNil(t, resp.Fault.Expected)
	assert.Equal(t, int64(3), *resp.Fault.Expected)
	require.NotNil(t, resp.Fault.Actual)
	assert.Equal(t, int64(5), *resp.Fault.Actual)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("registered alice")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "registered alice")
}

func TestOutputFormatter_TextFault(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Fault(record.NewNotOwner("bob", "alice"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "NOT_OWNER")
	assert.Contains(t, buf.String(), "may not append")
}

func TestOutputFormatter_TextFaultVerboseShowsObserved(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Fault(record.NewStaleLength("alice", 3, 5))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "expected 3, observed 5")
}

func TestOutputFormatter_NonFaultRejection(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Fault(errors.New("quota exhausted for alice"))
	require.NoError(t, err)

	var resp envelope
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Fault)
	assert.Equal(t, "REJECTED", resp.Fault.Code)
	assert.Nil(t, resp.Fault.Expected)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	formatter.VerboseLog("opening %s", "test.db")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "opening test.db")

	formatter.Verbose = false
	errOut.Reset()
	formatter.VerboseLog("should not appear")
	assert.Empty(t, errOut.String())
}

func TestExitError(t *testing.T) {
	base := errors.New("disk full")
	wrapped := WrapExitError(ExitCommandError, "failed to open database", base)

	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "disk full")
	assert.ErrorIs(t, wrapped, base)

	plain := NewExitError(ExitFailure, "invariant violations")
	assert.Equal(t, ExitFailure, GetExitCode(plain))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("unknown")))
}
