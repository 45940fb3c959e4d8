package tailcmder

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/spoolworks/spool/pkg/eventsource"
)

var _ = Describe("Tail Command", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "tail-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("NewTailCmd", func() {
		It("creates a command with expected properties", func() {
			cmd := NewTailCmd()
			Expect(cmd.Use).To(Equal("tail <stream|url>"))
			Expect(cmd.Short).NotTo(BeEmpty())
		})

		It("has stream and rendering flags", func() {
			cmd := NewTailCmd()
			for _, name := range []string{"server-target", "last-event-id", "header", "retry", "raw", "tui"} {
				Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), "missing flag %s", name)
			}
		})

		It("rejects --raw together with --tui", func() {
			cmd := NewTailCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
			cmd.SetArgs([]string{"builds", "--raw", "--tui", "--config-dir", tmpDir})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
		})

		It("requires exactly one argument", func() {
			cmd := NewTailCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
			cmd.SetArgs([]string{"--config-dir", tmpDir})

			err := cmd.Execute()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("resolveTarget", func() {
		newCommander := func(serverTarget string) *TailCommander {
			v := viper.New()
			v.Set("client.server_target", serverTarget)
			return &TailCommander{v: v}
		}

		It("passes full URLs through", func() {
			c := newCommander("")
			streamURL, name, err := c.resolveTarget("https://example.com/events")
			Expect(err).NotTo(HaveOccurred())
			Expect(streamURL).To(Equal("https://example.com/events"))
			Expect(name).To(Equal("example.com/events"))
		})

		It("resolves stream names against the server target", func() {
			c := newCommander("http://localhost:8080")
			streamURL, name, err := c.resolveTarget("builds")
			Expect(err).NotTo(HaveOccurred())
			Expect(streamURL).To(Equal("http://localhost:8080/streams/builds/replay?follow=true"))
			Expect(name).To(Equal("builds"))
		})

		It("trims a trailing slash from the server target", func() {
			c := newCommander("http://localhost:8080/")
			streamURL, _, err := c.resolveTarget("builds")
			Expect(err).NotTo(HaveOccurred())
			Expect(streamURL).To(Equal("http://localhost:8080/streams/builds/replay?follow=true"))
		})

		It("escapes stream names", func() {
			c := newCommander("http://localhost:8080")
			streamURL, _, err := c.resolveTarget("web builds")
			Expect(err).NotTo(HaveOccurred())
			Expect(streamURL).To(ContainSubstring("/streams/web%20builds/replay"))
		})

		It("errors without a server target", func() {
			c := newCommander("")
			_, _, err := c.resolveTarget("builds")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no server target"))
		})
	})

	Describe("clientOptions", func() {
		It("applies the flag retry interval", func() {
			c := &TailCommander{retry: 7 * time.Second, v: viper.New()}
			opts, err := c.clientOptions()
			Expect(err).NotTo(HaveOccurred())

			client := eventsource.NewClient("http://localhost", opts...)
			Expect(client.RetryInterval()).To(Equal(7 * time.Second))
		})

		It("falls back to the configured tail.retry", func() {
			v := viper.New()
			v.Set("tail.retry", "250ms")
			c := &TailCommander{v: v}

			opts, err := c.clientOptions()
			Expect(err).NotTo(HaveOccurred())

			client := eventsource.NewClient("http://localhost", opts...)
			Expect(client.RetryInterval()).To(Equal(250 * time.Millisecond))
		})

		It("accepts key=value headers", func() {
			c := &TailCommander{headers: []string{"X-Token=abc", "X-Empty="}, v: viper.New()}
			_, err := c.clientOptions()
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects malformed headers", func() {
			c := &TailCommander{headers: []string{"NoEquals"}, v: viper.New()}
			_, err := c.clientOptions()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("malformed header"))
		})

		It("rejects headers missing a key", func() {
			c := &TailCommander{headers: []string{"=value"}, v: viper.New()}
			_, err := c.clientOptions()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("following a stream", func() {
		It("resumes with the last seen event id and stops on a fatal response", func() {
			var (
				mu       sync.Mutex
				requests int
				resumeID string
			)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				requests++
				n := requests
				if n > 1 {
					resumeID = r.Header.Get("Last-Event-ID")
				}
				mu.Unlock()

				if n > 1 {
					// A non-SSE answer is unrecoverable and ends the tail.
					w.Header().Set("Content-Type", "application/json")
					fmt.Fprint(w, `{}`)
					return
				}

				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "id: 7\ndata: first\n\nid: 8\ndata: second\n\n")
			}))
			defer srv.Close()

			cmd := NewTailCmd()
			cmd.PersistentFlags().String("config-dir", "", "Override path to the .spool/ directory")
			cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
			cmd.SetArgs([]string{srv.URL + "/events", "--raw", "--retry", "10ms", "--config-dir", tmpDir})

			err := cmd.Execute()
			Expect(err).To(MatchError(eventsource.ErrInvalidContentType))

			mu.Lock()
			defer mu.Unlock()
			Expect(requests).To(Equal(2))
			Expect(resumeID).To(Equal("8"))
		})
	})
})
