package adapter

import (
	"fmt"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/mem"
)

// An ADC is the converter an ADCStream reads from.
type ADC interface {
	DataAddr() uint32
	EnableDMA(on bool)
	SetSequence(channels []int, continuous bool) error
	StartConversion()
	StopConversion()
}

// ADCStream captures conversions of an ADC into a buffer of half-words.
type ADCStream struct {
	ctrl     *dma.Controller
	adc      ADC
	ch       dma.ChannelID
	buf      *mem.Buffer
	req      dma.TransferRequest
	channels []int
	ring     *dma.Ring
}

// SetupADC programs ch to capture count samples of analog channel 0 into
// buf. A circular stream keeps overwriting the buffer. The returned stream
// is ready to be started.
func SetupADC(
	ctrl *dma.Controller,
	adc ADC,
	ch dma.ChannelID,
	buf *mem.Buffer,
	count uint16,
	circular bool,
) (*ADCStream, error) {
	return setupADC(ctrl, adc, ch, buf, count, circular, []int{0})
}

// SetupADCMultiChannel programs ch to capture samplesPerChannel rounds of a
// scan over channels. The samples are interleaved in buf in scan order and
// the buffer is used circularly.
func SetupADCMultiChannel(
	ctrl *dma.Controller,
	adc ADC,
	ch dma.ChannelID,
	buf *mem.Buffer,
	channels []int,
	samplesPerChannel uint16,
) (*ADCStream, error) {
	total := len(channels) * int(samplesPerChannel)
	if len(channels) == 0 || total == 0 || total > 0xffff {
		return nil, fmt.Errorf("%w: %d channels of %d samples",
			dma.ErrInvalidConfig, len(channels), samplesPerChannel)
	}

	return setupADC(ctrl, adc, ch, buf, uint16(total), true, channels)
}

func setupADC(
	ctrl *dma.Controller,
	adc ADC,
	ch dma.ChannelID,
	buf *mem.Buffer,
	count uint16,
	circular bool,
	channels []int,
) (*ADCStream, error) {
	if err := channelMustServe(ch, dma.RequestADC1); err != nil {
		return nil, err
	}

	if err := bufferMustHold(buf, int(count)*int(dma.HalfWord)); err != nil {
		return nil, err
	}

	s := &ADCStream{
		ctrl:     ctrl,
		adc:      adc,
		ch:       ch,
		buf:      buf,
		channels: append([]int(nil), channels...),
		req: dma.TransferRequest{
			Direction:            dma.PeriphToMem,
			Source:               adc.DataAddr(),
			Destination:          buf.Addr(),
			Count:                count,
			Width:                dma.HalfWord,
			DestinationIncrement: true,
			Priority:             dma.High,
		},
	}

	if circular {
		s.req.Mode = dma.Circular
	}

	if err := ctrl.Configure(ch, s.req); err != nil {
		return nil, err
	}

	s.ring = dma.NewRing(ctrl, ch, count)
	adc.EnableDMA(true)

	return s, nil
}

// Channel returns the DMA channel of the stream.
func (s *ADCStream) Channel() dma.ChannelID {
	return s.ch
}

// Count returns the number of samples the buffer holds.
func (s *ADCStream) Count() uint16 {
	return s.req.Count
}

// Start enables the channel and then the conversions. A stopped or finished
// stream starts over at the beginning of the buffer.
func (s *ADCStream) Start() error {
	if err := s.ctrl.Configure(s.ch, s.req); err != nil {
		return err
	}

	if err := s.adc.SetSequence(s.channels, true); err != nil {
		return fmt.Errorf("%w: %w", dma.ErrInvalidConfig, err)
	}

	if err := s.ctrl.Start(s.ch); err != nil {
		return err
	}

	s.ring.Rewind()
	s.adc.StartConversion()

	return nil
}

// ReceivedCount returns how many samples have been written since the start
// or, for a circular stream, since the last wrap.
func (s *ADCStream) ReceivedCount() (uint16, error) {
	remaining, err := s.ctrl.RemainingCount(s.ch)
	if err != nil {
		return 0, err
	}

	if remaining > s.req.Count {
		remaining = s.req.Count
	}

	return s.req.Count - remaining, nil
}

// Poll returns the parts of the buffer written since the previous Poll.
func (s *ADCStream) Poll() ([]dma.Span, error) {
	return s.ring.Poll()
}

// Samples returns a copy of the samples in the spans, or of the whole buffer
// if no span is given.
func (s *ADCStream) Samples(spans ...dma.Span) []uint16 {
	if len(spans) == 0 {
		return s.buf.Uint16s(int(s.req.Count))
	}

	var out []uint16
	for _, span := range spans {
		for i := int(span.Start); i < int(span.End); i++ {
			out = append(out, uint16(s.buf.Elem(mem.HalfWord, i)))
		}
	}

	return out
}

// ChannelSamples returns the samples of the i-th channel of the scan.
func (s *ADCStream) ChannelSamples(i int) []uint16 {
	n := len(s.channels)
	if i < 0 || i >= n {
		return nil
	}

	all := s.Samples()
	out := make([]uint16, 0, len(all)/n)

	for j := i; j < len(all); j += n {
		out = append(out, all[j])
	}

	return out
}

// Wait blocks until a normal stream has filled its buffer.
func (s *ADCStream) Wait() error {
	_, err := s.ctrl.WaitComplete(s.ch, 0)
	return err
}

// Stop turns the converter off and then stops the channel.
func (s *ADCStream) Stop() (dma.Cancellation, error) {
	s.adc.StopConversion()
	return s.ctrl.Stop(s.ch)
}
