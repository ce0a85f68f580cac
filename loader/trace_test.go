package loader_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/loader"
)

var _ = Describe("Trace Loader", func() {
	Describe("ParseLine", func() {
		It("should parse a read record", func() {
			rec, err := loader.ParseLine("# 0 7fffed80 1")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(Equal(loader.Record{
				IsWrite:      false,
				Address:      0x7fffed80,
				Instructions: 1,
			}))
		})

		It("should parse a write record with a 0x prefix", func() {
			rec, err := loader.ParseLine("#\t1\t0x10010000   12")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.IsWrite).To(BeTrue())
			Expect(rec.Address).To(Equal(uint64(0x10010000)))
			Expect(rec.Instructions).To(Equal(uint64(12)))
		})

		It("should accept a marker glued to the access type", func() {
			rec, err := loader.ParseLine("#1 ff 0")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.IsWrite).To(BeTrue())
			Expect(rec.Address).To(Equal(uint64(0xff)))
		})

		It("should parse full 64-bit addresses", func() {
			rec, err := loader.ParseLine("# 0 ffffffffffffffff 2")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Address).To(Equal(^uint64(0)))
		})

		DescribeTable("malformed lines",
			func(line string) {
				_, err := loader.ParseLine(line)
				Expect(err).To(MatchError(loader.ErrMalformedRecord))
			},
			Entry("missing marker", "0 7fff 1"),
			Entry("wrong marker", "@ 0 7fff 1"),
			Entry("too few fields", "# 0 7fff"),
			Entry("too many fields", "# 0 7fff 1 2"),
			Entry("bad access type", "# 2 7fff 1"),
			Entry("bad address", "# 0 zzzz 1"),
			Entry("address overflow", "# 0 1ffffffffffffffff 1"),
			Entry("bad instruction count", "# 0 7fff x"),
			Entry("negative instruction count", "# 0 7fff -3"),
		)
	})

	Describe("TraceReader", func() {
		It("should yield records in order and then EOF", func() {
			r := loader.NewTraceReader(strings.NewReader(
				"# 0 00 1\n\n# 1 10 2\n   \n# 0 20 3\n"), "mem")

			var recs []loader.Record
			for {
				rec, err := r.Next()
				if err == io.EOF {
					break
				}
				Expect(err).NotTo(HaveOccurred())
				recs = append(recs, rec)
			}

			Expect(recs).To(HaveLen(3))
			Expect(recs[1]).To(Equal(loader.Record{IsWrite: true, Address: 0x10, Instructions: 2}))
			Expect(r.Line()).To(Equal(5))

			_, err := r.Next()
			Expect(err).To(Equal(io.EOF))
		})

		It("should report the line of a malformed record and continue", func() {
			r := loader.NewTraceReader(strings.NewReader("# 0 00 1\nbogus\n# 0 10 1\n"), "mem")

			_, err := r.Next()
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Next()
			Expect(err).To(MatchError(loader.ErrMalformedRecord))

			var malformed *loader.MalformedRecordError
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Line).To(Equal(2))
			Expect(malformed.Text).To(Equal("bogus"))
			Expect(err.Error()).To(ContainSubstring("mem:2"))

			rec, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Address).To(Equal(uint64(0x10)))
		})

		It("should parse records longer than a scanner token", func() {
			addr := strings.Repeat("0", 70000) + "40"
			r := loader.NewTraceReader(strings.NewReader("# 1 "+addr+" 2\n# 0 10 1\n"), "long")

			rec, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(Equal(loader.Record{IsWrite: true, Address: 0x40, Instructions: 2}))

			rec, err = r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Address).To(Equal(uint64(0x10)))
		})

		It("should report an oversized line as malformed and continue", func() {
			huge := "# 0 " + strings.Repeat("f", loader.MaxLineLength) + " 1"
			r := loader.NewTraceReader(strings.NewReader(huge+"\n# 0 10 1"), "huge")

			_, err := r.Next()
			Expect(err).To(MatchError(loader.ErrMalformedRecord))
			Expect(err).NotTo(MatchError(loader.ErrTraceUnavailable))
			Expect(err.Error()).To(ContainSubstring("huge:1"))

			rec, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Address).To(Equal(uint64(0x10)))
			Expect(r.Line()).To(Equal(2))

			_, err = r.Next()
			Expect(err).To(Equal(io.EOF))
		})

		It("should return EOF for an empty trace", func() {
			r := loader.NewTraceReader(strings.NewReader(""), "empty")
			_, err := r.Next()
			Expect(err).To(Equal(io.EOF))
			Expect(r.Close()).To(Succeed())
		})
	})

	Describe("Open", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "trace-loader-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should read a trace file", func() {
			path := filepath.Join(tempDir, "t.trace")
			Expect(os.WriteFile(path, []byte("# 1 abc 4\n"), 0644)).To(Succeed())

			r, err := loader.Open(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Name()).To(Equal(path))

			rec, err := r.Next()
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Address).To(Equal(uint64(0xabc)))

			Expect(r.Close()).To(Succeed())
			Expect(r.Close()).To(Succeed())
		})

		It("should fail for a missing file", func() {
			_, err := loader.Open(filepath.Join(tempDir, "missing.trace"))
			Expect(err).To(MatchError(loader.ErrTraceUnavailable))
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})
	})
})
