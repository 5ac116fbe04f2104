package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/simplehal/simplehal/sim"
)

type testTimeTeller struct {
	currentTime sim.VTimeInSec
}

func (t *testTimeTeller) CurrentTime() sim.VTimeInSec {
	return t.currentTime
}

var _ = Describe("DBTracer", func() {
	var (
		mockCtrl   *gomock.Controller
		timeTeller *testTimeTeller
		backend    *MockTraceWriter
		tracer     *DBTracer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeTeller = &testTimeTeller{}
		backend = NewMockTraceWriter(mockCtrl)
		tracer = NewDBTracer(timeTeller, backend)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write a task with its times and steps when it ends", func() {
		timeTeller.currentTime = 1
		tracer.StartTask(Task{ID: "1", Kind: "dma_transfer", What: "copy"})

		timeTeller.currentTime = 2
		tracer.StepTask(Task{ID: "1", Steps: []TaskStep{{What: "wrap"}}})

		timeTeller.currentTime = 3
		backend.EXPECT().Write(gomock.Any()).Do(func(task Task) {
			Expect(task.ID).To(Equal("1"))
			Expect(task.Kind).To(Equal("dma_transfer"))
			Expect(task.StartTime).To(Equal(sim.VTimeInSec(1)))
			Expect(task.EndTime).To(Equal(sim.VTimeInSec(3)))
			Expect(task.Steps).To(Equal([]TaskStep{{Time: 2, What: "wrap"}}))
		})
		tracer.EndTask(Task{ID: "1"})

		Expect(tracer.NumInflightTasks()).To(Equal(0))
	})

	It("should ignore unknown tasks", func() {
		tracer.StepTask(Task{ID: "x", Steps: []TaskStep{{What: "wrap"}}})
		tracer.EndTask(Task{ID: "x"})
	})

	It("should skip tasks outside the time range", func() {
		tracer.SetTimeRange(10, 20)

		timeTeller.currentTime = 1
		tracer.StartTask(Task{ID: "early"})
		timeTeller.currentTime = 5
		tracer.EndTask(Task{ID: "early"})

		timeTeller.currentTime = 25
		tracer.StartTask(Task{ID: "late"})

		Expect(tracer.NumInflightTasks()).To(Equal(0))
	})

	It("should write unfinished tasks on terminate", func() {
		timeTeller.currentTime = 1
		tracer.StartTask(Task{ID: "1"})

		timeTeller.currentTime = 4
		backend.EXPECT().Write(gomock.Any()).Do(func(task Task) {
			Expect(task.EndTime).To(Equal(sim.VTimeInSec(4)))
		})
		backend.EXPECT().Flush().Return(nil)

		Expect(tracer.Terminate()).To(Succeed())
	})
})
