package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistryWithConfigNamespaceAndLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistryWithConfig(Config{
		Registry:  reg,
		Namespace: "myapp",
		Labels:    prometheus.Labels{"service": "billing"},
	})

	r.PoolSize.WithLabelValues("p").Set(4)

	expected := `
# HELP myapp_pool_size Number of workers in the pool
# TYPE myapp_pool_size gauge
myapp_pool_size{pool_name="p",service="billing"} 4
`
	if err := promtest.GatherAndCompare(reg, strings.NewReader(expected), "myapp_pool_size"); err != nil {
		t.Fatal(err)
	}
}

func TestSeparateRegistriesDoNotConflict(t *testing.T) {
	a := NewRegistry(prometheus.NewRegistry())
	b := NewRegistry(prometheus.NewRegistry())

	a.Promotions.WithLabelValues("x").Inc()
	if got := promtest.ToFloat64(b.Promotions.WithLabelValues("x")); got != 0 {
		t.Fatalf("registries share state: got %v", got)
	}
}
