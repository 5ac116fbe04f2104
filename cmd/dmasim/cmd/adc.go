package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/dma/adapter"
	"github.com/simplehal/simplehal/periph/adc"
	"github.com/simplehal/simplehal/sim"
)

var adcCmd = &cobra.Command{
	Use:   "adc",
	Short: "Sample one analog pin and print the average.",
	RunE:  withSession(runADC),
}

var multichannelCmd = &cobra.Command{
	Use:   "multichannel",
	Short: "Scan several analog inputs into one interleaved buffer.",
	RunE:  withSession(runMultiChannel),
}

var doublebufferCmd = &cobra.Command{
	Use:   "doublebuffer",
	Short: "Stream the ADC into a circular buffer and process each half.",
	RunE:  withSession(runDoubleBuffer),
}

func init() {
	for _, c := range []*cobra.Command{adcCmd, multichannelCmd, doublebufferCmd} {
		c.Flags().Float64("signal-freq", 50, "frequency of the test signal in Hz")
		rootCmd.AddCommand(c)
	}

	adcCmd.Flags().String("pin", "PC4", "analog pin to sample")
	adcCmd.Flags().Int("samples", 32, "number of samples")

	multichannelCmd.Flags().String("inputs", "0,3,5", "comma separated ADC inputs")
	multichannelCmd.Flags().Int("samples", 16, "samples per input")

	doublebufferCmd.Flags().Int("half", 32, "samples per half of the buffer")
	doublebufferCmd.Flags().Int("blocks", 8, "number of halves to process")
}

// useTestSignal feeds every ADC input a sine wave of its own phase and
// amplitude, centered in the converter range.
func useTestSignal(cmd *cobra.Command, s *session) {
	freq, _ := cmd.Flags().GetFloat64("signal-freq")

	s.board.ADC.SetSignal(adc.SignalFunc(
		func(input int, t sim.VTimeInSec) uint16 {
			amplitude := 50.0 * float64(input+1)
			phase := float64(input) * math.Pi / 4
			v := adc.Resolution/2 +
				amplitude*math.Sin(2*math.Pi*freq*float64(t)+phase)

			return uint16(math.Round(v))
		}))
}

func mean(samples []uint16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, v := range samples {
		sum += float64(v)
	}

	return sum / float64(len(samples))
}

func runADC(cmd *cobra.Command, s *session) error {
	useTestSignal(cmd, s)

	name, _ := cmd.Flags().GetString("pin")
	n, _ := cmd.Flags().GetInt("samples")
	if n <= 0 || n > 0xffff {
		return fmt.Errorf("samples must be between 1 and 65535")
	}

	pin, err := adapter.ParsePin(name)
	if err != nil {
		return err
	}

	r := adapter.NewAnalogReader(s.board.DMA, s.board.ADC)
	buf, err := s.board.RAM.Alloc(2*n, 4)
	if err != nil {
		return err
	}

	if err := r.Start(pin, buf, uint16(n), false); err != nil {
		return err
	}

	if err := r.Stream().Wait(); err != nil {
		return err
	}

	if err := r.Stop(); err != nil {
		return err
	}

	avg, err := r.Average()
	if err != nil {
		return err
	}

	input, _ := pin.AnalogChannel()
	s.printf(cmd, "%s (input %d): %d samples, average %d\n", pin, input, n, avg)

	return s.settle()
}

func parseInputs(list string) ([]int, error) {
	var inputs []int
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("bad input %q: %w", field, err)
		}

		inputs = append(inputs, v)
	}

	return inputs, nil
}

func runMultiChannel(cmd *cobra.Command, s *session) error {
	useTestSignal(cmd, s)

	list, _ := cmd.Flags().GetString("inputs")
	samples, _ := cmd.Flags().GetInt("samples")

	inputs, err := parseInputs(list)
	if err != nil {
		return err
	}

	if samples <= 0 || samples*len(inputs) > 0xffff {
		return fmt.Errorf("too many samples")
	}

	b := s.board
	buf, err := b.RAM.Alloc(2*samples*len(inputs), 4)
	if err != nil {
		return err
	}

	stream, err := adapter.SetupADCMultiChannel(
		b.DMA, b.ADC, dma.Channel1, buf, inputs, uint16(samples))
	if err != nil {
		return err
	}

	if err := stream.Start(); err != nil {
		return err
	}

	want := b.ADC.Conversions() + uint64(stream.Count())
	err = s.runUntil(func() bool { return b.ADC.Conversions() >= want })
	if err != nil {
		return err
	}

	if _, err := stream.Stop(); err != nil {
		return err
	}

	for i, input := range inputs {
		values := stream.ChannelSamples(i)
		s.printf(cmd, "input %d: %d samples, mean %.1f\n",
			input, len(values), mean(values))
	}

	return s.settle()
}

func runDoubleBuffer(cmd *cobra.Command, s *session) error {
	useTestSignal(cmd, s)

	half, _ := cmd.Flags().GetInt("half")
	blocks, _ := cmd.Flags().GetInt("blocks")
	if half <= 0 || 2*half > 0xffff || blocks <= 0 {
		return fmt.Errorf("need a positive half size and block count")
	}

	b := s.board
	count := uint16(2 * half)

	buf, err := b.RAM.Alloc(4*half, 4)
	if err != nil {
		return err
	}

	stream, err := adapter.SetupADC(b.DMA, b.ADC, dma.Channel1,
		buf, count, true)
	if err != nil {
		return err
	}

	var wraps atomic.Int64
	err = b.DMA.SetCompleteCallback(dma.Channel1, func(dma.ChannelID) {
		wraps.Add(1)
	})
	if err != nil {
		return err
	}
	defer func() { _ = b.DMA.ClearCompleteCallback(dma.Channel1) }()

	step, finish := s.progress("doublebuffer", uint64(blocks))
	defer finish()

	if err := stream.Start(); err != nil {
		return err
	}

	// Samples are consumed in halves: whatever Poll returns is appended to
	// the pending block, and every full half is processed.
	var (
		pending   []uint16
		processed int
		pollErr   error
	)
	process := func() bool {
		spans, err := stream.Poll()
		if err != nil {
			pollErr = err
			return true
		}

		if len(spans) == 0 {
			return processed >= blocks
		}

		pending = append(pending, stream.Samples(spans...)...)
		for len(pending) >= half && processed < blocks {
			s.printf(cmd, "block %d: mean %.1f\n", processed, mean(pending[:half]))
			pending = pending[half:]
			processed++
			step()
		}

		return processed >= blocks
	}

	if err := s.runUntil(process); err != nil {
		return err
	}

	if pollErr != nil {
		return pollErr
	}

	if _, err := stream.Stop(); err != nil {
		return err
	}

	s.printf(cmd, "processed %d halves, buffer wrapped %d times\n",
		processed, wraps.Load())

	return s.settle()
}
