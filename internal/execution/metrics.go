package execution

import "github.com/prometheus/client_golang/prometheus"

var (
	metricSwapsExecuted = prometheus.NewCounter(prometheus.CounterOpts{Name: "chainagent_swaps_executed_total", Help: "Swaps that completed and were recorded"})
	metricDipNotMet     = prometheus.NewCounter(prometheus.CounterOpts{Name: "chainagent_swaps_dip_not_met_total", Help: "Swap attempts skipped because the price dip threshold was not reached"})
	metricQuotaRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "chainagent_swaps_quota_rejected_total", Help: "Swap attempts rejected by daily or lifetime quota"})
	metricQuoteSpent    = prometheus.NewCounter(prometheus.CounterOpts{Name: "chainagent_quote_spent_units_total", Help: "Quote token spent on executed swaps, in smallest units"})
)

func init() {
	prometheus.MustRegister(
		metricSwapsExecuted, metricDipNotMet,
		metricQuotaRejected, metricQuoteSpent,
	)
}
