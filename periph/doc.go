// Package periph holds the simulated peripherals that can request DMA
// service. Each peripheral lives in its own sub-package, exposes its
// registers as a mem.RegisterFile and raises its DMA request through a
// dmac.RequestSource.
package periph

// A RequestNotifier is woken up when a peripheral raises a DMA request.
type RequestNotifier interface {
	NotifyRequest()
}
