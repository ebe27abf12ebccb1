package daemon

import (
	"context"
	"time"

	"github.com/go-logr/logr/testr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Supervisor", func() {
	var (
		clock      *fakeClock
		supervisor *Supervisor
		memory     *ResourceMemory
		ctx        context.Context
		cancel     context.CancelFunc
	)

	BeforeEach(func() {
		clock = newFakeClock(time.Unix(0, 0))
		runner := NewRunner(NewSyncEngine(), NoopPatcher{}, clock, testr.New(GinkgoT()))
		supervisor = NewSupervisor(runner, clock, nil, testr.New(GinkgoT()))
		memory = NewResourceMemory(ResourceID{Name: "widget-1"}, clock.Now())
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	Context("Spawn", func() {
		It("starts exactly one task per handler ID and is idempotent on repeat calls", func() {
			var spawns int
			handler, err := NewDaemonHandler("watch", func(c Cause) error {
				spawns++
				<-c.Stopper.(interface{ Done() <-chan struct{} }).Done()
				return nil
			}, DaemonSpec{})
			Expect(err).NotTo(HaveOccurred())

			supervisor.Spawn(ctx, memory, []SpawningHandler{handler})
			supervisor.Spawn(ctx, memory, []SpawningHandler{handler})

			Expect(memory.Len()).To(Equal(1))
		})
	})

	Context("StopForDeletion", func() {
		It("reports done immediately when nothing is tracked", func() {
			_, done := supervisor.StopForDeletion(memory)
			Expect(done).To(BeTrue())
		})

		It("advances signalled -> cancelled -> abandoned as elapsed time crosses each threshold", func() {
			backoff := 10 * time.Second
			timeout := 10 * time.Second
			handler, err := NewDaemonHandler("stubborn", func(c Cause) error {
				<-context.Background().Done() // never returns on its own; only ctx cancellation would stop it, and this handler ignores it
				return nil
			}, DaemonSpec{CancellationBackoff: &backoff, CancellationTimeout: &timeout})
			Expect(err).NotTo(HaveOccurred())
			supervisor.Spawn(ctx, memory, []SpawningHandler{handler})

			record, ok := memory.get(handler.ID)
			Expect(ok).To(BeTrue())

			_, done := supervisor.StopForDeletion(memory)
			Expect(done).To(BeFalse())
			Expect(record.Stopper.IsSetReason(ResourceDeleted)).To(BeTrue())
			Expect(record.Stopper.IsSetReason(DaemonSignalled)).To(BeTrue())
			Expect(record.Stopper.IsSetReason(DaemonCancelled)).To(BeFalse())

			clock.Advance(backoff)
			supervisor.StopForDeletion(memory)
			Expect(record.Stopper.IsSetReason(DaemonCancelled)).To(BeTrue())
			Expect(record.Stopper.IsSetReason(DaemonAbandoned)).To(BeFalse())

			clock.Advance(timeout)
			supervisor.StopForDeletion(memory)
			Expect(record.Stopper.IsSetReason(DaemonAbandoned)).To(BeTrue())
		})
	})

	Context("StopInMemory", func() {
		It("blocks until a cooperative handler has fully exited", func() {
			handler, err := NewDaemonHandler("cooperative", func(c Cause) error { return nil }, DaemonSpec{})
			Expect(err).NotTo(HaveOccurred())
			supervisor.Spawn(ctx, memory, []SpawningHandler{handler})

			finished := make(chan struct{})
			go func() {
				supervisor.StopInMemory(ctx, memory, OperatorExiting)
				close(finished)
			}()

			Eventually(finished).Should(BeClosed())
		})
	})
})
