package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcie-bw/internal/config"
	"pcie-bw/pkg/sweep"
)

func TestPublish(t *testing.T) {
	model, _, err := config.DefaultConfig().Build()
	require.NoError(t, err)

	rows := make([]sweep.Row, 0, 2)
	for _, size := range []int{64, 1500} {
		row, err := model.Evaluate(size, 4)
		require.NoError(t, err)
		rows = append(rows, row)
	}

	e := NewExporter()
	e.Publish(model, rows)

	assert.InDelta(t, model.Link.TLPBandwidth().Gbps(), testutil.ToFloat64(e.linkTLP), 1e-9)
	assert.InDelta(t, model.Basis.Reference().Gbps(), testutil.ToFloat64(e.reference), 1e-9)
	assert.Equal(t, 14, testutil.CollectAndCount(e.throughput))
	assert.InDelta(t, rows[1].Ethernet, testutil.ToFloat64(e.throughput.WithLabelValues("ethernet", "1500")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.reloads))

	// a second publish with fewer rows drops stale sizes
	e.Publish(model, rows[:1])
	assert.Equal(t, 7, testutil.CollectAndCount(e.throughput))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.reloads))
}

func TestHandler(t *testing.T) {
	e := NewExporter()
	e.ObserveRequest("Evaluate", "OK")

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `pciebw_requests_total{code="OK",method="Evaluate"} 1`), body)
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
