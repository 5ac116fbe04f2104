package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/mem"
)

var memcopyCmd = &cobra.Command{
	Use:   "memcopy",
	Short: "Copy a block of SRAM with the memory-to-memory channel.",
	RunE:  withSession(runMemCopy),
}

var memsetCmd = &cobra.Command{
	Use:   "memset",
	Short: "Fill a block of SRAM with one byte value.",
	RunE:  withSession(runMemSet),
}

func init() {
	memcopyCmd.Flags().Int("size", 256, "number of bytes to copy")
	memcopyCmd.Flags().Int("repeat", 1, "number of copies")
	rootCmd.AddCommand(memcopyCmd)

	memsetCmd.Flags().Int("size", 256, "number of bytes to set")
	memsetCmd.Flags().Uint8("value", 0xa5, "value to store")
	rootCmd.AddCommand(memsetCmd)
}

func blockSize(cmd *cobra.Command, s *session) (int, error) {
	size, _ := cmd.Flags().GetInt("size")

	// Two blocks and their alignment padding have to fit.
	limit := (s.board.RAM.Free() - 8) / 2
	if limit > 0xffff {
		limit = 0xffff
	}

	if size <= 0 || size > limit {
		return 0, fmt.Errorf("size must be between 1 and %d", limit)
	}

	return size, nil
}

func runMemCopy(cmd *cobra.Command, s *session) error {
	size, err := blockSize(cmd, s)
	if err != nil {
		return err
	}

	repeat, _ := cmd.Flags().GetInt("repeat")

	src := s.board.RAM.MustAlloc(size, 4)
	dst := s.board.RAM.MustAlloc(size, 4)
	for i := 0; i < size; i++ {
		src.SetElem(mem.Byte, i, uint32(i*7+3))
	}

	step, finish := s.progress("memcopy", uint64(repeat))
	defer finish()

	start := s.board.Now()
	for i := 0; i < repeat; i++ {
		dst.Fill(0)
		if err := s.board.DMA.MemCopy(dst.Addr(), src.Addr(), uint16(size)); err != nil {
			return err
		}

		if !bytes.Equal(dst.Bytes(), src.Bytes()) {
			return fmt.Errorf("copy %d does not match its source", i)
		}

		step()
	}
	elapsed := s.board.Now() - start

	s.printf(cmd, "copied %d x %d bytes on %s in %.9f s",
		repeat, size, dma.MemCopyChannel, elapsed)
	if elapsed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %.0f B/s",
			float64(repeat*size)/float64(elapsed))
	}
	if busy := s.busyTime(dma.MemCopyChannel); busy > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", busy %.9f s", busy)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	return nil
}

func runMemSet(cmd *cobra.Command, s *session) error {
	size, err := blockSize(cmd, s)
	if err != nil {
		return err
	}

	value, _ := cmd.Flags().GetUint8("value")

	dst := s.board.RAM.MustAlloc(size, 4)
	if err := s.board.DMA.MemSet(dst.Addr(), value, uint16(size)); err != nil {
		return err
	}

	if !bytes.Equal(dst.Bytes(), bytes.Repeat([]byte{value}, size)) {
		return fmt.Errorf("block does not hold 0x%02x everywhere", value)
	}

	s.printf(cmd, "set %d bytes at 0x%08x to 0x%02x\n", size, dst.Addr(), value)

	return nil
}
