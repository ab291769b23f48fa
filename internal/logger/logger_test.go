package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, level LogLevel) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var info, errs bytes.Buffer
	prev := GetLevel()
	SetWriters(&info, &errs)
	SetLevel(level)
	t.Cleanup(func() {
		SetLevel(prev)
		_ = SetLogOutput('c')
	})
	return &info, &errs
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"":        INFO,
		"warning": WARN,
		" error ": ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	info, errs := captureLogs(t, WARN)

	Info("hidden")
	Warn("shown", 3)
	Error("broken", errors.New("boom"))

	assert.NotContains(t, info.String(), "hidden")
	assert.Contains(t, info.String(), "[WARN]")
	assert.Contains(t, info.String(), "shown 3")
	assert.Contains(t, errs.String(), "broken boom")
	assert.Contains(t, errs.String(), "logger_test.go")
}

func TestInformAndHighlightSitBetweenInfoAndWarn(t *testing.T) {
	info, errs := captureLogs(t, INFORM)

	Info("chatter")
	Inform("stored run", "abc")
	Highlight("server up")

	assert.NotContains(t, info.String(), "chatter")
	assert.Contains(t, info.String(), "[INFORM]")
	assert.Contains(t, info.String(), "stored run abc")
	assert.Contains(t, info.String(), "[HIGHLIGHT]")
	assert.Empty(t, errs.String())

	SetLevel(WARN)
	info.Reset()
	Highlight("quiet")
	assert.Empty(t, info.String())
}

func TestObjectsRenderedAsJSON(t *testing.T) {
	info, _ := captureLogs(t, DEBUG)

	Debug("model", map[string]float64{"slope": 2})

	out := info.String()
	assert.Contains(t, out, "[Object of type map[string]float64]")
	assert.Contains(t, out, `"slope": 2`)
}

func TestSetLogOutputRejectsUnknownMode(t *testing.T) {
	assert.Error(t, SetLogOutput('x'))
}

func TestSetLogOutputFile(t *testing.T) {
	SetLogFile(t.TempDir() + "/out.log")
	require.NoError(t, SetLogOutput('b'))
	t.Cleanup(func() { _ = SetLogOutput('c') })
	Info("to both")
}
