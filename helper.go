package fairtrade

import (
	"sync/atomic"
	"time"
)

// StartOperationCounter logs sell/buy operations per interval until the
// returned stop function is called.
func (m *Market) StartOperationCounter(interval time.Duration) (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sells := atomic.SwapUint64(&m.sellCounter, 0)
				buys := atomic.SwapUint64(&m.buyCounter, 0)
				m.config.Logger.Info("Escrow operations per interval", "sell_ops", sells, "buy_ops", buys)
			}
		}
	}()

	return func() { close(done) }
}
