package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestShouldLogMessage(t *testing.T) {
	t.Cleanup(func() { SetLogVerbosity(0) })

	tests := []struct {
		verbosity int
		level     LogLevel
		want      bool
	}{
		{verbosity: 0, level: LevelError, want: true},
		{verbosity: 0, level: LevelWarn, want: false},
		{verbosity: 1, level: LevelWarn, want: true},
		{verbosity: 1, level: LevelInfo, want: false},
		{verbosity: 2, level: LevelInfo, want: true},
	}

	for _, tt := range tests {
		SetLogVerbosity(tt.verbosity)
		assert.Equal(t, tt.want, shouldLogMessage(tt.level), "verbosity=%d level=%s", tt.verbosity, tt.level)
	}
}

func TestLog_RecordsOnSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	ctx, span := tracer.Start(context.Background(), "op")
	Log(ctx, LevelWarn, "User not found", errors.New("missing"), attribute.String("user.id", "1"))
	Log(ctx, LevelInfo, "still going", nil)
	span.End()

	ctx, failed := tracer.Start(context.Background(), "failing-op")
	Log(ctx, LevelError, "Failed to create user", errors.New("boom"))
	failed.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 2)
	assert.Equal(t, "User not found", spans[0].Events()[0].Name)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "Failed to create user", spans[1].Status().Description)
}

func TestNewNoop(t *testing.T) {
	tel := NewNoop()
	require.NotNil(t, tel.Tracer)
	require.NotNil(t, tel.UserCounter)
	require.NotNil(t, tel.UsersStored)

	_, span := tel.Tracer.Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
	span.End()
}
