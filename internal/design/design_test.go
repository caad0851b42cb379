package design_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/drivegain/internal/config"
	"github.com/san-kum/drivegain/internal/design"
	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/export"
)

func stageOf(err error) dynamo.Stage {
	s, _ := dynamo.StageOf(err)
	return s
}

var _ = Describe("Design", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.DefaultConfig()
	})

	Context("with the default high-gear drivetrain", func() {
		var d *design.Design

		BeforeEach(func() {
			var err error
			d, err = design.New(cfg, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("discretizes within integration tolerance", func() {
			Expect(d.Residual).To(BeNumerically("<", 1e-9))
		})

		It("produces a diagonally dominant position gain", func() {
			k := d.LQR.K
			Expect(k.At(0, 0)).To(BeNumerically("~", 80.65, 0.5))
			Expect(k.At(1, 2)).To(BeNumerically("~", k.At(0, 0), 1e-9))
			Expect(math.Abs(k.At(0, 0))).To(BeNumerically(">", 10*math.Abs(k.At(0, 2))))
			Expect(math.Abs(k.At(0, 1))).To(BeNumerically(">", math.Abs(k.At(0, 3))))
		})

		It("stabilizes the closed loop and the observer", func() {
			Expect(d.Poles.Stable()).To(BeTrue())
		})

		It("gives a near-unity position correction", func() {
			Expect(d.Kalman.L.At(0, 0)).To(BeNumerically("~", 1, 1e-3))
			Expect(d.Kalman.L.At(2, 1)).To(BeNumerically("~", 1, 1e-3))
		})

		It("is deterministic", func() {
			again, err := design.New(config.DefaultConfig(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.LQR.K.RawMatrix().Data).To(Equal(d.LQR.K.RawMatrix().Data))
			Expect(again.Kalman.L.RawMatrix().Data).To(Equal(d.Kalman.L.RawMatrix().Data))
			Expect(again.Feedforward.Kff.RawMatrix().Data).To(Equal(d.Feedforward.Kff.RawMatrix().Data))
		})

		It("simulates a step without overshoot or runaway", func() {
			res, err := d.Simulate(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.StepsTaken).To(Equal(len(d.References())))
			Expect(res.Overshoot(0, cfg.Simulation.Step.Distance)).To(BeNumerically("<", 1e-3))
			Expect(res.Metrics["saturation"]).To(BeNumerically(">", 0))
			Expect(res.Metrics["stability"]).To(Equal(1.0))

			for _, u := range res.Controls {
				Expect(math.Abs(u[0])).To(BeNumerically("<=", cfg.Voltage))
				Expect(math.Abs(u[1])).To(BeNumerically("<=", cfg.Voltage))
			}
		})

		It("summarizes gains and figures", func() {
			s := d.Summary(nil, nil)
			Expect(s.Gains).To(HaveLen(3))
			for _, f := range s.Figures {
				Expect(f.OK).To(BeTrue(), f.Label)
			}
		})

		It("exports gains that read back unchanged", func() {
			dir := GinkgoT().TempDir()
			d.Config.Export.Dir = dir
			files, err := d.Export()
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(HaveLen(1))

			src, err := os.ReadFile(files[0])
			Expect(err).NotTo(HaveOccurred())
			k, err := export.ParseMatrix(src, "DrivetrainK")
			Expect(err).NotTo(HaveOccurred())
			Expect(k.RawMatrix().Data).To(Equal(d.LQR.K.RawMatrix().Data))
		})

		It("refuses to create a missing output directory", func() {
			d.Config.Export.Dir = filepath.Join(GinkgoT().TempDir(), "missing")
			_, err := d.Export()
			Expect(errors.Is(err, dynamo.ErrExport)).To(BeTrue())
			Expect(stageOf(err)).To(Equal(dynamo.StageExport))
		})
	})

	It("logs each stretch of input saturation during simulation", func() {
		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		d, err := design.New(cfg, log)
		Expect(err).NotTo(HaveOccurred())

		res, err := d.Simulate(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Metrics["saturation"]).To(BeNumerically(">", 0))

		out := buf.String()
		Expect(out).To(ContainSubstring("saturation began"))
		Expect(out).To(ContainSubstring("saturation ended"))
	})

	It("designs the low gear with its own weights", func() {
		cfg.Gear = config.GearLow
		cfg.Drivetrain.LowRatio = 12.0 / 60.0
		low, err := design.New(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		high, err := design.New(config.DefaultConfig(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(low.LQR.K.At(0, 0)).NotTo(BeNumerically("~", high.LQR.K.At(0, 0), 1e-6))
	})

	DescribeTable("reports the failing stage",
		func(mutate func(*config.Config), stage dynamo.Stage, kind error) {
			mutate(cfg)
			_, err := design.New(cfg, nil)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, kind)).To(BeTrue(), err.Error())
			Expect(stageOf(err)).To(Equal(stage))
		},
		Entry("negative mass", func(c *config.Config) { c.Drivetrain.Mass = -1 }, dynamo.StageConfig, dynamo.ErrConfiguration),
		Entry("zero dt", func(c *config.Config) { c.Dt = 0 }, dynamo.StageConfig, dynamo.ErrConfiguration),
		Entry("unknown rule", func(c *config.Config) { c.Rule = "inverse" }, dynamo.StageConfig, dynamo.ErrConfiguration),
		Entry("unknown motor", func(c *config.Config) { c.Drivetrain.Motor = "falcon9" }, dynamo.StageModel, dynamo.ErrConfiguration),
		Entry("NaN inertia", func(c *config.Config) { c.Drivetrain.Inertia = math.NaN() }, dynamo.StageConfig, dynamo.ErrConfiguration),
	)
})

var _ = Describe("Sweep", func() {
	It("designs every preset and isolates failures", func() {
		cfgs := map[string]*config.Config{}
		for _, name := range config.ListPresets() {
			cfgs[name] = config.GetPreset(name)
		}
		broken := config.DefaultConfig()
		broken.Drivetrain.Motor = "nope"
		cfgs["broken"] = broken

		out := design.Sweep(context.Background(), cfgs, nil)
		Expect(out).To(HaveLen(len(cfgs)))
		for i, o := range out {
			if i > 0 {
				Expect(o.Name > out[i-1].Name).To(BeTrue())
			}
			if o.Name == "broken" {
				Expect(o.Err).To(HaveOccurred())
				Expect(o.Design).To(BeNil())
				continue
			}
			Expect(o.Err).NotTo(HaveOccurred(), o.Name)
			Expect(o.Design.Poles.Stable()).To(BeTrue())
			Expect(o.Result.StepsTaken).To(BeNumerically(">", 0))
		}
	})
})
