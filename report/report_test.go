package report_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/report"
	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/stats"
)

var _ = Describe("Report", func() {
	var (
		buf     *bytes.Buffer
		config  cache.Config
		summary stats.Summary
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		config = *cache.DefaultConfig()
		summary = stats.Summary{
			Counters: stats.Counters{
				Accesses:     3,
				Misses:       1,
				Instructions: 3,
			},
			MissRate:    100.0 / 3.0,
			TotalCycles: 33,
			IPC:         3.0 / 33.0,
		}
	})

	It("should echo the configuration", func() {
		report.WriteConfig(buf, config)
		Expect(buf.String()).To(ContainSubstring("Cache Size (Bytes):                16384"))
		Expect(buf.String()).To(ContainSubstring("Associativity:                     1"))
		Expect(buf.String()).To(ContainSubstring("Sets:                              1024"))
		Expect(buf.String()).To(ContainSubstring("Replacement Policy:                counter"))
		Expect(buf.String()).To(ContainSubstring("Dirty Write-back Penalty (Cycles): 2"))
	})

	It("should print miss rate and IPC", func() {
		report.WriteText(buf, config, summary)
		Expect(buf.String()).To(ContainSubstring("CACHE SETTINGS"))
		Expect(buf.String()).To(ContainSubstring("Miss Rate:        33.33%"))
		Expect(buf.String()).To(ContainSubstring("IPC:              0.0909"))
		Expect(buf.String()).To(ContainSubstring("Total Cycles:     33"))
	})

	It("should state that a degenerate run has no metrics", func() {
		report.WriteDegenerate(buf, config, stats.Counters{})
		Expect(buf.String()).To(ContainSubstring("undefined (no accesses)"))
		Expect(buf.String()).NotTo(ContainSubstring("NaN"))
	})

	It("should encode JSON", func() {
		Expect(report.WriteJSON(buf, config, summary)).To(Succeed())

		var decoded map[string]map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &decoded)).To(Succeed())
		Expect(decoded["config"]["block_size"]).To(BeNumerically("==", 16))
		Expect(decoded["summary"]["accesses"]).To(BeNumerically("==", 3))
		Expect(decoded["summary"]["miss_rate"]).To(BeNumerically("~", 33.33, 0.01))
	})

	It("should mark a degenerate run in JSON", func() {
		counters := stats.Counters{Accesses: 0, Instructions: 0}
		Expect(report.WriteDegenerateJSON(buf, config, counters, "degenerate summary: no accesses recorded")).
			To(Succeed())

		var decoded report.Report
		Expect(json.Unmarshal(buf.Bytes(), &decoded)).To(Succeed())
		Expect(decoded.Degenerate).To(BeTrue())
		Expect(decoded.Reason).To(ContainSubstring("no accesses"))
		Expect(decoded.Summary).To(BeNil())
		Expect(decoded.Counters).NotTo(BeNil())
		Expect(decoded.Config.Size).To(Equal(16 * 1024))
	})
})
