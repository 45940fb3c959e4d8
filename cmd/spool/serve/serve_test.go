package servecmder

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/eventstream/nop"
)

var _ = Describe("Serve Command", func() {
	Describe("NewServeCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := NewServeCmd()
			Expect(cmd.Use).To(Equal("serve"))
			Expect(cmd.Short).NotTo(BeEmpty())
		})

		It("has all server flags", func() {
			cmd := NewServeCmd()
			for _, name := range []string{"listen", "workers", "driver", "dsn", "kafka-brokers", "kafka-topic", "no-mcp"} {
				Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), "missing flag %s", name)
			}
		})

		It("has shorthands for listen and workers", func() {
			cmd := NewServeCmd()
			Expect(cmd.Flags().Lookup("listen").Shorthand).To(Equal("l"))
			Expect(cmd.Flags().Lookup("workers").Shorthand).To(Equal("w"))
		})

		It("seeds flag defaults from the config defaults", func() {
			cmd := NewServeCmd()
			Expect(cmd.Flags().Lookup("listen").DefValue).To(Equal(":8080"))
			Expect(cmd.Flags().Lookup("workers").DefValue).To(Equal("4"))
			Expect(cmd.Flags().Lookup("driver").DefValue).To(Equal("sqlite"))
			Expect(cmd.Flags().Lookup("kafka-topic").DefValue).To(Equal("spool-events"))
		})
	})

	Describe("createStore", func() {
		var tmpDir string

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "serve-test-*")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			os.RemoveAll(tmpDir)
		})

		It("opens a sqlite store at the DSN path", func() {
			c := &ServeCommander{logger: zap.NewNop()}
			store, err := c.createStore("sqlite", filepath.Join(tmpDir, "capture.db"))
			Expect(err).NotTo(HaveOccurred())
			defer store.Close()

			_, err = os.Stat(filepath.Join(tmpDir, "capture.db"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates an in-memory store", func() {
			c := &ServeCommander{logger: zap.NewNop()}
			store, err := c.createStore("memory", "")
			Expect(err).NotTo(HaveOccurred())
			defer store.Close()
			Expect(store).NotTo(BeNil())
		})

		It("requires a DSN for postgres", func() {
			c := &ServeCommander{}
			_, err := c.createStore("postgres", "")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("requires a DSN"))
		})

		It("rejects unknown drivers", func() {
			c := &ServeCommander{}
			_, err := c.createStore("etcd", "")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown database driver"))
		})
	})

	Describe("createPublisher", func() {
		It("returns the nop publisher without brokers", func() {
			c := &ServeCommander{}
			pub, err := c.createPublisher(nil, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(pub).To(BeAssignableToTypeOf(&nop.Publisher{}))
		})

		It("returns a kafka publisher when brokers are configured", func() {
			c := &ServeCommander{logger: zap.NewNop()}
			pub, err := c.createPublisher([]string{"localhost:9092"}, "test-events")
			Expect(err).NotTo(HaveOccurred())
			Expect(pub).NotTo(BeAssignableToTypeOf(&nop.Publisher{}))
			Expect(pub.Close()).To(Succeed())
		})
	})
})
