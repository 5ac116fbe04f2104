package board

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/simplehal/simplehal/sim"
)

// Mode tells how the simulated hardware advances.
type Mode string

// Board modes.
const (
	// Lockstep boards move only while the caller waits or steps them.
	Lockstep Mode = "lockstep"

	// FreeRunning boards move on their own goroutine.
	FreeRunning Mode = "free-running"
)

// Config describes a board.
type Config struct {
	Mode Mode

	// TimeScale paces a free-running board, in simulated seconds per
	// wall-clock second. Zero runs as fast as possible.
	TimeScale float64

	BusFreq       sim.Freq
	SRAMSize      int
	ADCPrescaler  int
	USARTBaud     int
	USARTLoopback bool
	SPIPrescaler  int

	// FillSlots reserves SRAM for the source bytes of MemSet.
	FillSlots bool
}

// DefaultConfig returns a lockstep CH32V003 with 2 KB of SRAM.
func DefaultConfig() Config {
	return Config{
		Mode:         Lockstep,
		BusFreq:      48 * sim.MHz,
		SRAMSize:     2 * 1024,
		ADCPrescaler: 8,
		USARTBaud:    115200,
		SPIPrescaler: 4,
		FillSlots:    true,
	}
}

// Environment variables read by LoadConfig.
const (
	EnvMode          = "SIMPLEHAL_MODE"
	EnvTimeScale     = "SIMPLEHAL_TIME_SCALE"
	EnvBusMHz        = "SIMPLEHAL_BUS_MHZ"
	EnvSRAMSize      = "SIMPLEHAL_SRAM_SIZE"
	EnvADCPrescaler  = "SIMPLEHAL_ADC_PRESCALER"
	EnvUSARTBaud     = "SIMPLEHAL_USART_BAUD"
	EnvUSARTLoopback = "SIMPLEHAL_USART_LOOPBACK"
	EnvSPIPrescaler  = "SIMPLEHAL_SPI_PRESCALER"
	EnvFillSlots     = "SIMPLEHAL_FILL_SLOTS"
)

// LoadConfig starts from the defaults, applies the variables of the .env
// file at path, if any, and then the variables of the process environment.
func LoadConfig(path string) (Config, error) {
	vars := map[string]string{}

	if path != "" {
		fileVars, err := godotenv.Read(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}

		vars = fileVars
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, "SIMPLEHAL_") {
			vars[k] = v
		}
	}

	cfg := DefaultConfig()
	if err := cfg.apply(vars); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) apply(vars map[string]string) error {
	p := envParser{vars: vars}

	if v, ok := vars[EnvMode]; ok {
		c.Mode = Mode(strings.ToLower(v))
	}

	p.readFloat(EnvTimeScale, &c.TimeScale)

	mhz := float64(c.BusFreq / sim.MHz)
	p.readFloat(EnvBusMHz, &mhz)
	c.BusFreq = sim.Freq(mhz) * sim.MHz

	p.readInt(EnvSRAMSize, &c.SRAMSize)
	p.readInt(EnvADCPrescaler, &c.ADCPrescaler)
	p.readInt(EnvUSARTBaud, &c.USARTBaud)
	p.readBool(EnvUSARTLoopback, &c.USARTLoopback)
	p.readInt(EnvSPIPrescaler, &c.SPIPrescaler)
	p.readBool(EnvFillSlots, &c.FillSlots)

	return p.err
}

// Validate checks that a board can be built from the configuration.
func (c Config) Validate() error {
	switch {
	case c.Mode != Lockstep && c.Mode != FreeRunning:
		return fmt.Errorf("unknown board mode %q", c.Mode)
	case c.TimeScale < 0:
		return fmt.Errorf("negative time scale %g", c.TimeScale)
	case c.BusFreq <= 0:
		return fmt.Errorf("bus clock must be positive")
	case c.SRAMSize <= 0:
		return fmt.Errorf("SRAM size must be positive")
	case c.ADCPrescaler <= 0 || c.SPIPrescaler <= 0:
		return fmt.Errorf("prescalers must be positive")
	case c.USARTBaud <= 0:
		return fmt.Errorf("baud rate must be positive")
	}

	return nil
}

type envParser struct {
	vars map[string]string
	err  error
}

func (p *envParser) readInt(key string, dst *int) {
	v, ok := p.vars[key]
	if !ok || p.err != nil {
		return
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}

	*dst = n
}

func (p *envParser) readFloat(key string, dst *float64) {
	v, ok := p.vars[key]
	if !ok || p.err != nil {
		return
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}

	*dst = f
}

func (p *envParser) readBool(key string, dst *bool) {
	v, ok := p.vars[key]
	if !ok || p.err != nil {
		return
	}

	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
		return
	}

	*dst = b
}
