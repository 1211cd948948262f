package filter_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/haukened/rr-adblock/internal/adblock/common/log"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/services/filter"
)

// fakeEngine is a scriptable gateway that counts calls.
type fakeEngine struct {
	mu         sync.Mutex
	initResult bool
	initErr    error
	filterErr  error
	blocked    map[string]bool
	enabled    bool
	calls      map[string]int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{initResult: true, blocked: map[string]bool{}, calls: map[string]int{}}
}

func (f *fakeEngine) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeEngine) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeEngine) Initialize(context.Context, *domain.InitOptions) (bool, error) {
	f.record("Initialize")
	return f.initResult, f.initErr
}

func (f *fakeEngine) Enable(context.Context) error {
	f.record("Enable")
	f.enabled = true
	return nil
}

func (f *fakeEngine) Disable(context.Context) error {
	f.record("Disable")
	f.enabled = false
	return nil
}

func (f *fakeEngine) FilterRequest(_ context.Context, url string) (bool, error) {
	f.record("FilterRequest")
	if f.filterErr != nil {
		return false, f.filterErr
	}
	return f.blocked[url], nil
}

func (f *fakeEngine) IsEnabled(context.Context) (bool, error) {
	f.record("IsEnabled")
	return f.enabled, nil
}

func (f *fakeEngine) UpdateFilters(context.Context) error {
	f.record("UpdateFilters")
	return nil
}

// warnCounter counts warnings and discards everything else.
type warnCounter struct {
	mu    sync.Mutex
	warns int
}

func (w *warnCounter) Info(map[string]any, string)  {}
func (w *warnCounter) Error(map[string]any, string) {}
func (w *warnCounter) Debug(map[string]any, string) {}
func (w *warnCounter) Panic(map[string]any, string) {}
func (w *warnCounter) Fatal(map[string]any, string) {}
func (w *warnCounter) Warn(map[string]any, string) {
	w.mu.Lock()
	w.warns++
	w.mu.Unlock()
}
func (w *warnCounter) With(map[string]any) log.Logger { return w }

func kindOf(err error) domain.ErrorKind {
	k, _ := domain.KindOf(err)
	return k
}

var _ = Describe("Filter Policy Controller", func() {
	var (
		ctx        context.Context
		engine     *fakeEngine
		logger     *warnCounter
		controller *filter.Controller
	)

	BeforeEach(func() {
		ctx = context.Background()
		engine = newFakeEngine()
		logger = &warnCounter{}
		var err error
		controller, err = filter.NewController(filter.ControllerOptions{Gateway: engine, Logger: logger})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("before initialization", func() {
		It("rejects guarded operations without calling the engine", func() {
			Expect(kindOf(controller.Enable(ctx))).To(Equal(domain.KindNotInitialized))
			Expect(kindOf(controller.UpdateFilters(ctx))).To(Equal(domain.KindNotInitialized))
			cfg, err := controller.GetConfig(ctx)
			Expect(cfg).To(BeNil())
			Expect(kindOf(err)).To(Equal(domain.KindNotInitialized))
			Expect(kindOf(controller.SetConfig(ctx, domain.FilterConfigPatch{}))).To(Equal(domain.KindNotInitialized))

			Expect(engine.count("Enable")).To(BeZero())
			Expect(engine.count("UpdateFilters")).To(BeZero())
		})

		It("still validates URLs", func() {
			_, err := controller.FilterValue(ctx, 123)
			Expect(kindOf(err)).To(Equal(domain.KindFilterRequestFailed))
		})
	})

	Describe("initialization", func() {
		Context("when the engine declines", func() {
			It("stays uninitialized and reports the failure", func() {
				engine.initResult = false
				ok, err := controller.Init(ctx, nil)
				Expect(ok).To(BeFalse())
				Expect(kindOf(err)).To(Equal(domain.KindInitializationFailed))
				Expect(err.Error()).To(ContainSubstring("initialization failed"))
				Expect(controller.IsInitialized()).To(BeFalse())
			})
		})

		Context("when the engine errors", func() {
			It("wraps the cause and allows a retry", func() {
				cause := errors.New("native module crashed")
				engine.initErr = cause
				_, err := controller.Init(ctx, nil)
				Expect(err).To(MatchError(cause))
				Expect(kindOf(err)).To(Equal(domain.KindInitializationFailed))

				engine.initErr = nil
				ok, err := controller.Init(ctx, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
				Expect(engine.count("Initialize")).To(Equal(2))
			})
		})
	})

	Describe("filtering once enabled", func() {
		BeforeEach(func() {
			engine.blocked["https://ads.example.com"] = true
			_, err := controller.Init(ctx, &domain.InitOptions{PerformanceMode: domain.PerformanceBalanced})
			Expect(err).NotTo(HaveOccurred())
		})

		It("allows everything while disabled without asking the engine", func() {
			blocked, err := controller.FilterRequest(ctx, "https://ads.example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(BeFalse())
			Expect(engine.count("FilterRequest")).To(BeZero())
		})

		It("blocks what the engine blocks", func() {
			Expect(controller.Enable(ctx)).To(Succeed())
			Expect(controller.IsEnabledCached()).To(BeTrue())

			blocked, err := controller.FilterRequest(ctx, "https://ads.example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(BeTrue())
			Expect(controller.FilterRequestDetailed(ctx, "https://ads.example.com")).To(Equal(
				domain.FilterDecision{ShouldBlock: true, Reason: "Matched blocking rule"}))
		})

		It("fails open when the engine errors", func() {
			Expect(controller.Enable(ctx)).To(Succeed())
			engine.filterErr = errors.New("engine unavailable")

			blocked, err := controller.FilterRequest(ctx, "https://ads.example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(BeFalse())
			Expect(controller.FilterRequestDetailed(ctx, "https://ads.example.com").Reason).To(Equal("No matching rule found"))
		})

		It("alternates on toggle", func() {
			on, err := controller.Toggle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(on).To(BeTrue())
			on, err = controller.Toggle(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(on).To(BeFalse())
		})

		It("returns nil configuration when the engine cannot provide one", func() {
			cfg, err := controller.GetConfig(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("treats a missing config writer as success with a warning", func() {
			Expect(controller.SetConfig(ctx, domain.FilterConfigPatch{})).To(Succeed())
			Expect(logger.warns).To(Equal(1))
		})
	})

	Describe("reset", func() {
		It("always returns to the initial state", func() {
			_, err := controller.Init(ctx, &domain.InitOptions{EnableLogging: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(controller.Enable(ctx)).To(Succeed())

			controller.Reset()
			Expect(controller.IsInitialized()).To(BeFalse())
			Expect(controller.IsEnabledCached()).To(BeFalse())
			Expect(controller.InitOptions()).To(BeNil())
		})
	})
})
