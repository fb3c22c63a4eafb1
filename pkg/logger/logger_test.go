package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestHelpersAreNilSafe(t *testing.T) {
	Log = nil
	assert.NotPanics(t, func() {
		Debug("x")
		Info("x")
		Warn("x")
		Error("x")
		LogRequestFast(&fasthttp.RequestCtx{})
	})
}

func TestInitWriterLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn")
	t.Cleanup(func() { Log = nil })

	Info("hidden_event")
	Warn("shown_event", "report_id", "r1")
	assert.NotContains(t, buf.String(), "hidden_event")
	assert.Contains(t, buf.String(), "shown_event")
	assert.Contains(t, buf.String(), "report_id=r1")
}

func TestSafeHeadersRedactsCredentials(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Authorization", "Bearer secret-token")
	ctx.Request.Header.Set("X-Api-Key", "k")
	ctx.Request.Header.Set("Accept", "application/json")

	got := SafeHeadersFast(&ctx)
	assert.Contains(t, got, "Authorization=Bear****")
	assert.Contains(t, got, "X-Api-Key=****")
	assert.Contains(t, got, "Accept=application/json")
	assert.NotContains(t, got, "secret-token")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("Debug").String())
	assert.Equal(t, "WARN", parseLevel("warning").String())
	assert.Equal(t, "ERROR", parseLevel(" error ").String())
	assert.Equal(t, "INFO", parseLevel("verbose").String())
}
