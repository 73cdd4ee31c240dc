package stencil

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLogLevel("warn"))
	assert.Equal(t, zerolog.Disabled, ParseLogLevel("disabled"))
	assert.Equal(t, zerolog.Disabled, ParseLogLevel("loud"))
}

func TestLoggerOutput(t *testing.T) {
	prev := *GetLogger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, zerolog.InfoLevel))
	assert.False(t, IsDebugMode())

	GetLogger().Debug().Msg("hidden")
	GetLogger().Info().Str("part", contentPart).Msg("visible")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"component":"stencil"`)
	assert.Contains(t, buf.String(), `"part":"content.xml"`)
	assert.Contains(t, buf.String(), `"message":"visible"`)

	SetLogLevel(zerolog.DebugLevel)
	assert.True(t, IsDebugMode())
}

func TestRenderLogsDebugEvents(t *testing.T) {
	prev := *GetLogger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, zerolog.DebugLevel))

	_, _, err := renderODT(createSimpleODTBytes(para(userField("name"))), TemplateData{"name": "x"})
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "scan complete")
	assert.Contains(t, buf.String(), "template rendered")
}
