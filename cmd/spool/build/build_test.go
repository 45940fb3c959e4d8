package buildcmder_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	buildcmder "github.com/spoolworks/spool/cmd/spool/build"
)

var _ = Describe("Build Command", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "build-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewBuildCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := buildcmder.NewBuildCmd()
			Expect(cmd.Use).To(Equal("build -- <command> [args...]"))
			Expect(cmd.Short).NotTo(BeEmpty())
		})

		It("has notify and watch flags", func() {
			cmd := buildcmder.NewBuildCmd()
			for _, name := range []string{"notify", "stream", "watch", "watch-paths"} {
				Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), "missing flag %s", name)
			}
		})

		It("defaults the stream name to builds", func() {
			cmd := buildcmder.NewBuildCmd()
			Expect(cmd.Flags().Lookup("stream").DefValue).To(Equal("builds"))
		})

		It("requires a build command", func() {
			cmd := buildcmder.NewBuildCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.SetArgs([]string{"--config-dir", tmpDir})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
		})

		It("rejects arguments before the dash", func() {
			cmd := buildcmder.NewBuildCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.SetArgs([]string{"stray", "--config-dir", tmpDir, "--", "true"})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("before --"))
		})
	})

	Describe("running a build", func() {
		It("succeeds when the command succeeds", func() {
			cmd := buildcmder.NewBuildCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.SetArgs([]string{"--config-dir", tmpDir, "--", "sh", "-c", "echo compiling 50%"})

			Expect(cmd.Execute()).To(Succeed())
		})

		It("fails when the command fails", func() {
			cmd := buildcmder.NewBuildCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.SetArgs([]string{"--config-dir", tmpDir, "--", "sh", "-c", "exit 3"})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("build failed"))
		})

		It("fails when the command does not exist", func() {
			cmd := buildcmder.NewBuildCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.SetArgs([]string{"--config-dir", tmpDir, "--", "definitely-not-a-real-binary"})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("--notify", func() {
		var (
			srv  *httptest.Server
			mu   sync.Mutex
			body []byte
			path string
		)

		BeforeEach(func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				mu.Lock()
				body = b
				path = r.URL.Path
				mu.Unlock()
				w.WriteHeader(http.StatusOK)
			}))
		})

		AfterEach(func() {
			srv.Close()
		})

		It("streams start, progress, and done events to the server", func() {
			cmd := buildcmder.NewBuildCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.SetArgs([]string{
				"--config-dir", tmpDir,
				"--notify", srv.URL,
				"--stream", "test-builds",
				"--", "sh", "-c", "echo linking 42%",
			})

			Expect(cmd.Execute()).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(path).To(Equal("/streams/test-builds/events"))

			payload := string(body)
			Expect(payload).To(ContainSubstring("event: start"))
			Expect(payload).To(ContainSubstring(`"command":"sh -c echo linking 42%"`))
			Expect(payload).To(ContainSubstring("event: progress"))
			Expect(payload).To(ContainSubstring(`"percent":42`))
			Expect(payload).To(ContainSubstring("event: done"))
			Expect(payload).To(ContainSubstring(`"status":"ok"`))
		})

		It("reports a failed build in the done event", func() {
			cmd := buildcmder.NewBuildCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.SetArgs([]string{
				"--config-dir", tmpDir,
				"--notify", srv.URL,
				"--", "sh", "-c", "exit 3",
			})

			Expect(cmd.Execute()).NotTo(Succeed())

			mu.Lock()
			defer mu.Unlock()
			payload := string(body)
			Expect(payload).To(ContainSubstring(`"status":"failed"`))
			Expect(payload).To(ContainSubstring(`"exit_code":3`))
		})

		It("surfaces an unreachable notify target", func() {
			cmd := buildcmder.NewBuildCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.SetArgs([]string{
				"--config-dir", tmpDir,
				"--notify", "http://127.0.0.1:1", // nothing listens here
				"--", "sh", "-c", "echo 10%",
			})

			// The build itself still runs and succeeds; the broken
			// transport is reported as a warning, not an error.
			Expect(cmd.Execute()).To(Succeed())
		})
	})
})
