package dma

import "fmt"

// Status is the lifecycle state of a channel.
type Status uint8

// Channel states.
const (
	Idle Status = iota
	Busy
	Complete
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	case Complete:
		return "complete"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal tells if the state ends a transfer.
func (s Status) Terminal() bool {
	return s == Complete || s == Error
}

// Cancellation is the outcome of stopping a channel.
type Cancellation struct {
	Channel ChannelID

	// WasBusy tells if a transfer was active when the channel was stopped.
	WasBusy bool
}

// Remainder reports how many elements were left. The hardware may or may
// not have landed an element that was in flight when the channel was
// disabled, so the count register cannot tell. The remainder is therefore
// always reported as unknown.
func (c Cancellation) Remainder() (count uint16, known bool) {
	return 0, false
}
