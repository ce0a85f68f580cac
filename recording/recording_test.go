package recording_test

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/recording"
	"github.com/sarchlab/cachesim/timing/core"
)

var sampleEvents = []core.AccessEvent{
	{Seq: 1, IsWrite: true, Address: 0x7fffed80, SetIndex: 984, Tag: 0x7fff, Instructions: 3},
	{Seq: 2, Address: 0x7fffed84, SetIndex: 984, Tag: 0x7fff, Hit: true, Instructions: 1},
	{Seq: 3, Address: 0xffffffffffffff00, SetIndex: 1008, Tag: 0x3ffffffffffff, DirtyWriteback: true},
}

var _ = Describe("TextSink", func() {
	It("should write one line per access", func() {
		var buf bytes.Buffer
		sink := recording.NewTextSink(&buf)

		for _, e := range sampleEvents {
			Expect(sink.Record(e)).To(Succeed())
		}
		Expect(sink.Close()).To(Succeed())

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(Equal(
			"W 0x7fffed80, set 984, tag 0x7fff, miss, dirty writeback: false, instructions: 3"))
		Expect(lines[1]).To(HavePrefix("R 0x7fffed84"))
		Expect(lines[1]).To(ContainSubstring("hit"))
		Expect(lines[2]).To(ContainSubstring("dirty writeback: true"))
	})
})

var _ = Describe("SQLiteSink", func() {
	var (
		tempDir string
		dbPath  string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "recording-test")
		Expect(err).NotTo(HaveOccurred())
		dbPath = filepath.Join(tempDir, "accesses.sqlite3")
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	countRows := func() int {
		db, err := sql.Open("sqlite3", dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = db.Close() }()

		var n int
		Expect(db.QueryRow("SELECT COUNT(*) FROM " + recording.AccessTable).Scan(&n)).To(Succeed())
		return n
	}

	It("should store every access on close", func() {
		sink, err := recording.NewSQLiteSink(dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(sink.Path()).To(Equal(dbPath))
		Expect(sink.RunID()).NotTo(BeEmpty())

		for _, e := range sampleEvents {
			Expect(sink.Record(e)).To(Succeed())
		}
		Expect(sink.Close()).To(Succeed())

		Expect(countRows()).To(Equal(3))
	})

	It("should store addresses and outcomes", func() {
		sink, err := recording.NewSQLiteSink(dbPath)
		Expect(err).NotTo(HaveOccurred())
		for _, e := range sampleEvents {
			Expect(sink.Record(e)).To(Succeed())
		}
		Expect(sink.Close()).To(Succeed())

		db, err := sql.Open("sqlite3", dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = db.Close() }()

		var (
			runID, kind, address string
			hit, dirty           bool
		)
		row := db.QueryRow("SELECT RunID, Kind, Address, Hit, DirtyWriteback FROM " +
			recording.AccessTable + " WHERE Seq = 3")
		Expect(row.Scan(&runID, &kind, &address, &hit, &dirty)).To(Succeed())
		Expect(runID).To(Equal(sink.RunID()))
		Expect(kind).To(Equal("R"))
		Expect(address).To(Equal("0xffffffffffffff00"))
		Expect(hit).To(BeFalse())
		Expect(dirty).To(BeTrue())
	})

	It("should flush when a batch fills up", func() {
		sink, err := recording.NewSQLiteSink(dbPath, recording.WithBatchSize(2))
		Expect(err).NotTo(HaveOccurred())

		Expect(sink.Record(sampleEvents[0])).To(Succeed())
		Expect(sink.Record(sampleEvents[1])).To(Succeed())
		Expect(countRows()).To(Equal(2))

		Expect(sink.Record(sampleEvents[2])).To(Succeed())
		Expect(sink.Close()).To(Succeed())
		Expect(countRows()).To(Equal(3))
	})

	It("should refuse to overwrite an existing file", func() {
		Expect(os.WriteFile(dbPath, []byte("x"), 0644)).To(Succeed())

		_, err := recording.NewSQLiteSink(dbPath)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("already exists"))
	})

	It("should reject records after close", func() {
		sink, err := recording.NewSQLiteSink(dbPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(sink.Close()).To(Succeed())
		Expect(sink.Close()).To(Succeed())

		Expect(sink.Record(sampleEvents[0])).NotTo(Succeed())
	})
})
