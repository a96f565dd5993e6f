package ledger

import "github.com/prometheus/client_golang/prometheus"

var (
	txTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "creditledger_transactions_total",
		Help: "Ledger transactions by outcome.",
	}, []string{"outcome"})

	blockHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "creditledger_block_height",
		Help: "Number of the latest committed block.",
	})

	entryCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "creditledger_entries",
		Help: "Number of keys holding a committed value.",
	})

	mempoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "creditledger_mempool_size",
		Help: "Transactions accepted but not yet committed.",
	})
)

func init() {
	prometheus.MustRegister(txTotal, blockHeight, entryCount, mempoolSize)
}
