package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/simplehal/simplehal/board"
	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/monitoring"
	"github.com/simplehal/simplehal/sim"
	"github.com/simplehal/simplehal/tracing"
)

// freeRunningTimeout bounds the wall-clock time a free-running board is
// given to reach a condition.
const freeRunningTimeout = 30 * time.Second

var errStalled = errors.New("the board stopped before the scenario finished")

// A session is one board with the tools the flags ask for.
type session struct {
	board   *board.Board
	monitor *monitoring.Monitor
	tracer  *tracing.DBTracer
	hold    bool
}

func newSession(cmd *cobra.Command) (*session, error) {
	f := cmd.Flags()
	envFile, _ := f.GetString("env")
	traceDB, _ := f.GetString("trace-db")
	logTransfers, _ := f.GetBool("log")
	logEvents, _ := f.GetBool("log-events")
	monitor, _ := f.GetBool("monitor")
	port, _ := f.GetInt("port")
	open, _ := f.GetBool("open")
	hold, _ := f.GetBool("hold")

	cfg, err := board.LoadConfig(envFile)
	if err != nil {
		return nil, err
	}

	b, err := board.New(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{board: b, hold: hold}

	if logTransfers {
		b.DMA.AcceptHook(dma.NewTransferLogger(log.New(os.Stderr, "", 0), b.Engine))
	}

	if logEvents {
		b.Engine.AcceptHook(sim.NewEventLogger(log.New(os.Stderr, "", 0)))
	}

	if traceDB != "" {
		w := tracing.NewSQLiteTraceWriter(traceDB)
		s.tracer = tracing.NewDBTracer(b.Engine, w)
		if err := s.tracer.Init(); err != nil {
			return nil, fmt.Errorf("creating trace database: %w", err)
		}
		tracing.CollectTrace(b.DMA, s.tracer)
		fmt.Fprintf(os.Stderr, "Recording transfers into %s\n", w.FileName())
	}

	if monitor || open {
		if err := s.startMonitor(port, open); err != nil {
			return nil, err
		}
	}

	b.Start()

	return s, nil
}

func (s *session) startMonitor(port int, open bool) error {
	s.monitor = monitoring.NewMonitor().WithPortNumber(port)
	s.monitor.RegisterEngine(s.board.Engine)
	for _, c := range s.board.Components() {
		s.monitor.RegisterComponent(c)
	}
	s.monitor.RegisterDMA(s.board.DMA, s.board.DMAHW)

	url, err := s.monitor.StartServer()
	if err != nil {
		return err
	}

	if open {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open a browser: %s\n", err)
		}
	}

	return nil
}

// runUntil lets the board run until cond holds.
func (s *session) runUntil(cond func() bool) error {
	if s.board.Config.Mode == board.Lockstep {
		for !cond() {
			more, err := s.board.Step()
			if err != nil {
				return err
			}

			if !more {
				return errStalled
			}
		}

		return nil
	}

	deadline := time.Now().Add(freeRunningTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			return errStalled
		}

		time.Sleep(time.Millisecond)
	}

	return nil
}

// settle lets a lockstep board finish what it is doing.
func (s *session) settle() error {
	if s.board.Config.Mode != board.Lockstep {
		return nil
	}

	return s.board.Drain()
}

// progress shows a bar on the monitor, if there is one.
func (s *session) progress(name string, total uint64) (step func(), finish func()) {
	if s.monitor == nil {
		return func() {}, func() {}
	}

	bar := s.monitor.CreateProgressBar(name, total)

	step = func() {
		bar.IncrementInProgress(1)
		bar.MoveInProgressToFinished(1)
	}
	finish = func() {
		s.monitor.CompleteProgressBar(bar)
	}

	return step, finish
}

func (s *session) printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "%.9f, ", s.board.Now())
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func (s *session) busyTime(ch dma.ChannelID) sim.VTimeInSec {
	if s.monitor == nil {
		return 0
	}

	return s.monitor.BusyTime(ch)
}

func (s *session) close() error {
	if s.hold {
		fmt.Fprintln(os.Stderr, "Scenario finished, press Ctrl-C to exit")
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		<-interrupt
	}

	var errs []error
	if s.tracer != nil {
		errs = append(errs, s.tracer.Terminate())
	}
	errs = append(errs, s.board.Close())

	return errors.Join(errs...)
}

// withSession wraps a scenario so that it gets a session that is closed
// afterwards.
func withSession(
	run func(cmd *cobra.Command, s *session) error,
) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}

		runErr := run(cmd, s)
		closeErr := s.close()

		return errors.Join(runErr, closeErr)
	}
}
