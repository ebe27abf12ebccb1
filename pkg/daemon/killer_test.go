package daemon

import (
	"context"
	"time"

	"github.com/go-logr/logr/testr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Killer", func() {
	It("stops daemons across every tracked resource concurrently", func() {
		clock := newFakeClock(time.Unix(0, 0))
		runner := NewRunner(NewSyncEngine(), NoopPatcher{}, clock, testr.New(GinkgoT()))
		supervisor := NewSupervisor(runner, clock, nil, testr.New(GinkgoT()))
		killer := NewKiller(supervisor, testr.New(GinkgoT()))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for i := 0; i < 3; i++ {
			resource := ResourceID{Name: testResourceName(i)}
			memory := NewResourceMemory(resource, clock.Now())
			handler, err := NewDaemonHandler("cooperative", func(Cause) error { return nil }, DaemonSpec{})
			Expect(err).NotTo(HaveOccurred())
			supervisor.Spawn(ctx, memory, []SpawningHandler{handler})
			killer.Track(memory)
		}

		done := make(chan struct{})
		go func() {
			Expect(killer.Run(ctx)).To(Succeed())
			close(done)
		}()

		Eventually(done).Should(BeClosed())
	})
})

func testResourceName(i int) string {
	return []string{"widget-a", "widget-b", "widget-c"}[i]
}
