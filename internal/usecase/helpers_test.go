package usecase

import (
	"fmt"
	"math/rand"
	"time"

	"Pasture/internal/domain/models"
	"Pasture/internal/repository"
	"Pasture/pkg/metrics"
	"Pasture/pkg/timeseries"

	"github.com/prometheus/client_golang/prometheus"
)

func d(s string) timeseries.Date { return timeseries.MustParseDate(s) }

func at(s string, hour int) time.Time {
	return d(s).Time().Add(time.Duration(hour) * time.Hour)
}

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func testMetrics() *metrics.Recorder {
	return metrics.NewWithRegisterer(prometheus.NewRegistry())
}

// seedRandomPrices stores n daily closes ending at end for each symbol,
// driven by a shared factor so the series correlate.
func seedRandomPrices(store *repository.MemoryStore, symbols []string, end timeseries.Date, n int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	level := make([]float64, len(symbols))
	for j := range level {
		level[j] = 100
	}
	start := end.Add(-(n - 1))
	for i := 0; i < n; i++ {
		m := rng.NormFloat64() * 0.01
		for j, s := range symbols {
			if i > 0 {
				level[j] *= 1 + (0.5+0.3*float64(j))*m + rng.NormFloat64()*0.004*float64(j+1)
			}
			store.AddPrices(models.PriceBar{Symbol: s, BaseDate: start.Add(i), Close: level[j]})
		}
	}
}

func symbolsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%02d", i)
	}
	return out
}
