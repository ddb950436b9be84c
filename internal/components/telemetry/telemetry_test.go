package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestScopedAPI(t *testing.T) {
	rec := NewRecorder()
	scoped := NewScopedAPI("portal", rec)

	scoped.ReportBroken("client.login", "boom")
	scoped.ReportDebug("fetched page", "/")

	broken := rec.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "portal: client.login", broken[0].Id)
	require.Equal(t, []any{"boom"}, broken[0].Params)

	require.True(t, rec.Contains("portal: fetched page"))
	require.False(t, rec.Contains("missing"))
}

func TestOtelAPI(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	rec := NewRecorder()
	api, err := NewOtelAPI(rec, provider.Meter("test"))
	require.NoError(t, err)

	api.ReportBroken("client.login")
	api.ReportBroken("client.login")
	api.ReportCount("extract.records", 3)

	require.Len(t, rec.Reports("broken"), 2)
	require.Len(t, rec.Reports("count"), 1)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &data))

	found := map[string]bool{}
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			found[m.Name] = true
			if m.Name == "broken_components" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				require.Equal(t, int64(2), sum.DataPoints[0].Value)
			}
		}
	}
	require.True(t, found["broken_components"])
	require.True(t, found["counts"])
}
