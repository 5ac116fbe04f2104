package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/dma/adapter"
)

var usartCmd = &cobra.Command{
	Use:   "usart",
	Short: "Send a message over USART1 in loopback and receive it back.",
	RunE:  withSession(runUSART),
}

var spiCmd = &cobra.Command{
	Use:   "spi",
	Short: "Exchange a block with a loopback SPI slave.",
	RunE:  withSession(runSPI),
}

func init() {
	usartCmd.Flags().String("message", "Hello from DMA1!", "text to send")
	usartCmd.Flags().Int("chunk", 4, "bytes per transmit call")
	rootCmd.AddCommand(usartCmd)

	spiCmd.Flags().Int("size", 64, "bytes to exchange")
	spiCmd.Flags().Bool("invert", false, "make the slave answer the inverse of each byte")
	rootCmd.AddCommand(spiCmd)
}

func runUSART(cmd *cobra.Command, s *session) error {
	message, _ := cmd.Flags().GetString("message")
	chunk, _ := cmd.Flags().GetInt("chunk")
	if len(message) == 0 || chunk <= 0 {
		return fmt.Errorf("need a message and a positive chunk size")
	}

	b := s.board
	b.USART.SetLoopback(true)

	rx, err := adapter.SetupSerialRx(b.DMA, b.USART, dma.Channel5,
		b.RAM.MustAlloc(32, 4), true)
	if err != nil {
		return err
	}

	txBuf, err := b.RAM.Alloc(chunk, 4)
	if err != nil {
		return err
	}

	tx, err := adapter.SetupSerialTx(b.DMA, b.USART, dma.Channel4, txBuf)
	if err != nil {
		return err
	}

	if err := rx.Start(); err != nil {
		return err
	}

	var received []byte
	p := make([]byte, 32)
	drain := func() error {
		n, err := rx.Read(p)
		received = append(received, p[:n]...)
		return err
	}

	data := []byte(message)
	for len(data) > 0 {
		n := min(chunk, len(data))
		if err := tx.Transmit(data[:n]); err != nil {
			return err
		}
		data = data[n:]

		if err := drain(); err != nil {
			return err
		}
	}

	err = s.runUntil(func() bool {
		return drain() == nil && len(received) >= len(message)
	})
	if err != nil {
		return err
	}

	if _, err := rx.Stop(); err != nil {
		return err
	}

	s.printf(cmd, "sent %q, received %q, %d overruns\n",
		message, received, b.USART.Overruns())

	if string(received) != message {
		return fmt.Errorf("received data differs from what was sent")
	}

	return nil
}

func runSPI(cmd *cobra.Command, s *session) error {
	size, _ := cmd.Flags().GetInt("size")
	invert, _ := cmd.Flags().GetBool("invert")
	if size <= 0 || size > 1024 {
		return fmt.Errorf("size must be between 1 and 1024")
	}

	b := s.board
	if invert {
		b.SPI.SetSlave(func(mosi byte) byte { return ^mosi })
	}

	txBuf, err := b.RAM.Alloc(size, 4)
	if err != nil {
		return err
	}

	rxBuf, err := b.RAM.Alloc(size, 4)
	if err != nil {
		return err
	}

	d, err := adapter.SetupDuplex(b.DMA, b.SPI, dma.Channel3, dma.Channel2,
		txBuf, rxBuf)
	if err != nil {
		return err
	}

	tx := make([]byte, size)
	want := make([]byte, size)
	for i := range tx {
		tx[i] = byte(i)
		want[i] = tx[i]
		if invert {
			want[i] = ^tx[i]
		}
	}

	rx := make([]byte, size)
	start := b.Now()
	if err := d.Exchange(tx, rx); err != nil {
		return err
	}

	s.printf(cmd, "exchanged %d bytes in %.9f s, %d overruns\n",
		size, b.Now()-start, b.SPI.Overruns())

	if !bytes.Equal(rx, want) {
		return fmt.Errorf("received data differs from what the slave sent")
	}

	return s.settle()
}
