package adapter

import (
	"fmt"
	"strings"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/mem"
)

// Pin is a package pin, written as port and number: 0x24 is PC4.
type Pin uint8

// Pins with an analog function.
const (
	PA1 Pin = 0x11
	PA2 Pin = 0x12
	PC4 Pin = 0x24
	PD2 Pin = 0x32
	PD3 Pin = 0x33
	PD4 Pin = 0x34
	PD5 Pin = 0x35
	PD6 Pin = 0x36
)

var analogChannels = map[Pin]int{
	PA2: 0,
	PA1: 1,
	PC4: 2,
	PD2: 3,
	PD3: 4,
	PD5: 5,
	PD6: 6,
	PD4: 7,
}

func (p Pin) String() string {
	return fmt.Sprintf("P%c%d", 'A'+rune(p>>4)-1, p&0xf)
}

// ParsePin reads a pin name such as "PC4".
func ParsePin(name string) (Pin, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if len(name) != 3 || name[0] != 'P' ||
		name[1] < 'A' || name[1] > 'D' ||
		name[2] < '0' || name[2] > '7' {
		return 0, fmt.Errorf("%w: %q is not a pin", dma.ErrInvalidConfig, name)
	}

	return Pin((name[1]-'A'+1)<<4 | (name[2] - '0')), nil
}

// AnalogChannel returns the converter input of the pin.
func (p Pin) AnalogChannel() (int, error) {
	ch, ok := analogChannels[p]
	if !ok {
		return 0, fmt.Errorf("%w: pin %s has no analog input",
			dma.ErrInvalidConfig, p)
	}

	return ch, nil
}

// AnalogReader samples one pin at a time on the ADC channel.
type AnalogReader struct {
	ctrl   *dma.Controller
	adc    ADC
	stream *ADCStream
	pin    Pin
}

// NewAnalogReader creates a reader on the channel serving the ADC.
func NewAnalogReader(ctrl *dma.Controller, adc ADC) *AnalogReader {
	return &AnalogReader{ctrl: ctrl, adc: adc}
}

// Start samples pin n times into buf. A continuous reader keeps sampling
// and overwrites the oldest samples.
func (r *AnalogReader) Start(pin Pin, buf *mem.Buffer, n uint16, continuous bool) error {
	input, err := pin.AnalogChannel()
	if err != nil {
		return err
	}

	if r.Busy() {
		return dma.ErrChannelBusy
	}

	ch, err := dma.RequestChannel(dma.RequestADC1)
	if err != nil {
		return err
	}

	s, err := setupADC(r.ctrl, r.adc, ch, buf, n, continuous, []int{input})
	if err != nil {
		return err
	}

	if err := s.Start(); err != nil {
		return err
	}

	r.stream = s
	r.pin = pin

	return nil
}

// Pin returns the pin sampled last.
func (r *AnalogReader) Pin() Pin {
	return r.pin
}

// Stream returns the stream behind the reader, or nil before the first
// Start.
func (r *AnalogReader) Stream() *ADCStream {
	return r.stream
}

// Average returns the mean of the samples in the buffer.
func (r *AnalogReader) Average() (uint16, error) {
	if r.stream == nil {
		return 0, dma.ErrIdle
	}

	samples := r.stream.Samples()

	var sum uint64
	for _, v := range samples {
		sum += uint64(v)
	}

	return uint16(sum / uint64(len(samples))), nil
}

// Busy tells if the reader is still sampling.
func (r *AnalogReader) Busy() bool {
	if r.stream == nil {
		return false
	}

	st, err := r.ctrl.GetStatus(r.stream.Channel())

	return err == nil && st == dma.Busy
}

// Stop stops sampling.
func (r *AnalogReader) Stop() error {
	if r.stream == nil {
		return nil
	}

	_, err := r.stream.Stop()

	return err
}
