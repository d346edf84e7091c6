package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/euroturn/internal/platform/otel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("EUROTURN_OTEL_ENDPOINT", "")
	t.Setenv("EUROTURN_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("EUROTURN_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("EUROTURN_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export happens.
	t.Setenv("EUROTURN_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("EUROTURN_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_RejectsBadSampleRatio(t *testing.T) {
	t.Setenv("EUROTURN_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("EUROTURN_OTEL_ENABLED", "")
	t.Setenv("EUROTURN_OTEL_SAMPLE_RATIO", "1.5")

	_, err := otel.Setup(context.Background(), "test-service")
	assert.ErrorContains(t, err, "EUROTURN_OTEL_SAMPLE_RATIO")
}

func TestSetup_AcceptsSampleRatio(t *testing.T) {
	t.Setenv("EUROTURN_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("EUROTURN_OTEL_ENABLED", "")
	t.Setenv("EUROTURN_OTEL_SAMPLE_RATIO", "0.25")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestTracerStartsSpanWithoutSetup(t *testing.T) {
	ctx, span := otel.Tracer("euroturn/test").Start(context.Background(), "op")
	defer span.End()

	assert.NotNil(t, ctx)
}
