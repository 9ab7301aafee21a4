package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerTextFormatIncludesComponentAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Debug, Format: TextFormat, Output: &buf, Component: "vm"})
	l.Infof("heap grew to %d bytes", 4096)

	out := buf.String()
	require.Contains(t, out, "[INFO]")
	require.Contains(t, out, "(vm)")
	require.Contains(t, out, "heap grew to 4096 bytes")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Warn, Format: TextFormat, Output: &buf})
	l.Infof("swallowed")
	l.Warnf("kept")

	out := buf.String()
	require.NotContains(t, out, "swallowed")
	require.Contains(t, out, "kept")
}

func TestLoggerJSONFormatIsValidPerLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Debug, Format: JSONFormat, Output: &buf})
	l.Errorf("boom %s", "splat")

	line := strings.TrimSpace(buf.String())
	var e entry
	require.NoError(t, json.Unmarshal([]byte(line), &e))
	require.Equal(t, "ERROR", e.Level)
	require.Equal(t, "boom splat", e.Message)
}

func TestWithComponentDerivesIndependentTag(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: Debug, Format: TextFormat, Output: &buf})
	child := base.WithComponent("reactor")
	child.Infof("listening")

	require.Contains(t, buf.String(), "(reactor)")
}

func TestWithFieldsAttachesFieldsToEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Debug, Format: TextFormat, Output: &buf})
	fl := l.WithFields(map[string]interface{}{"conn": 7})
	fl.Info("handshake complete")

	out := buf.String()
	require.Contains(t, out, "handshake complete")
	require.Contains(t, out, "conn=7")
}

func TestSetLevelAdjustsLiveFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: Info, Format: TextFormat, Output: &buf})
	l.Debugf("invisible")
	require.Empty(t, buf.String())

	l.SetLevel(Debug)
	l.Debugf("now visible")
	require.Contains(t, buf.String(), "now visible")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, Warn, lvl)

	_, err = ParseLevel("bogus")
	require.Error(t, err)
}
