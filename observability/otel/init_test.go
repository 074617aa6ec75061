package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,broken,=empty, team=market ")
	require.Equal(t, map[string]string{"api-key": "secret", "team": "market"}, headers)
}

func TestResourceCarriesDeploymentShape(t *testing.T) {
	res, err := Resource(Config{
		ServiceName: "marketd",
		Version:     "1.2.0",
		Environment: "staging",
		Storage:     "leveldb",
		Indexer:     "postgres",
	})
	require.NoError(t, err)
	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}
	require.Equal(t, "marketd", got["service.name"])
	require.Equal(t, "1.2.0", got["service.version"])
	require.Equal(t, "staging", got["deployment.environment"])
	require.Equal(t, "leveldb", got["nhbmarket.storage"])
	require.Equal(t, "postgres", got["nhbmarket.indexer"])
	require.NotEmpty(t, got["service.instance.id"])

	_, err = Resource(Config{})
	require.Error(t, err)
}
