package eventsource_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolworks/spool/pkg/eventsource"
)

func eventStreamHandler(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fn(w, r)
	}
}

var _ = Describe("Client", func() {
	It("delivers messages and tracks the last event id", func() {
		srv := httptest.NewServer(eventStreamHandler(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "id: 1\ndata: hello\n\n")
		}))
		defer srv.Close()

		var msgs []eventsource.Message
		c := eventsource.NewClient(srv.URL, eventsource.WithMaxAttempts(1))
		err := c.Subscribe(context.Background(), func(m eventsource.Message) {
			msgs = append(msgs, m)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Data).To(Equal("hello"))
		Expect(c.LastEventID()).To(Equal("1"))
	})

	It("sends event-stream request headers", func() {
		headers := make(chan http.Header, 1)
		srv := httptest.NewServer(eventStreamHandler(func(w http.ResponseWriter, r *http.Request) {
			headers <- r.Header.Clone()
			fmt.Fprint(w, "data: x\n\n")
		}))
		defer srv.Close()

		c := eventsource.NewClient(srv.URL,
			eventsource.WithMaxAttempts(1),
			eventsource.WithHeader("Authorization", "Bearer token"),
		)
		Expect(c.Subscribe(context.Background(), func(eventsource.Message) {})).To(Succeed())

		h := <-headers
		Expect(h.Get("Accept")).To(Equal("text/event-stream"))
		Expect(h.Get("Cache-Control")).To(Equal("no-cache"))
		Expect(h.Get("Authorization")).To(Equal("Bearer token"))
		Expect(h.Get("Last-Event-ID")).To(BeEmpty())
	})

	It("resumes with Last-Event-ID after a reconnect", func() {
		var count int32
		resumed := make(chan string, 1)
		srv := httptest.NewServer(eventStreamHandler(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&count, 1) == 1 {
				fmt.Fprint(w, "id: 7\ndata: a\n\n")
				return
			}
			resumed <- r.Header.Get("Last-Event-ID")
			fmt.Fprint(w, "data: b\n\n")
		}))
		defer srv.Close()

		var msgs []eventsource.Message
		c := eventsource.NewClient(srv.URL,
			eventsource.WithMaxAttempts(2),
			eventsource.WithRetryInterval(time.Millisecond),
		)
		err := c.Subscribe(context.Background(), func(m eventsource.Message) {
			msgs = append(msgs, m)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
		Expect(<-resumed).To(Equal("7"))
	})

	It("adopts a server-advertised retry interval", func() {
		srv := httptest.NewServer(eventStreamHandler(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "retry: 1\ndata: x\n\n")
		}))
		defer srv.Close()

		c := eventsource.NewClient(srv.URL, eventsource.WithMaxAttempts(1))
		Expect(c.Subscribe(context.Background(), func(eventsource.Message) {})).To(Succeed())
		Expect(c.RetryInterval()).To(Equal(time.Millisecond))
	})

	It("rejects a non-event-stream response without retrying", func() {
		var count int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&count, 1)
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "nope")
		}))
		defer srv.Close()

		c := eventsource.NewClient(srv.URL,
			eventsource.WithMaxAttempts(3),
			eventsource.WithRetryInterval(time.Millisecond),
		)
		err := c.Subscribe(context.Background(), func(eventsource.Message) {})
		Expect(errors.Is(err, eventsource.ErrInvalidContentType)).To(BeTrue())
		Expect(atomic.LoadInt32(&count)).To(Equal(int32(1)))
	})

	It("treats a decode error as unrecoverable", func() {
		var count int32
		srv := httptest.NewServer(eventStreamHandler(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&count, 1)
			fmt.Fprint(w, "data: ok\n\ndata: \xff\n\n")
		}))
		defer srv.Close()

		var msgs []eventsource.Message
		c := eventsource.NewClient(srv.URL,
			eventsource.WithMaxAttempts(5),
			eventsource.WithRetryInterval(time.Millisecond),
		)
		err := c.Subscribe(context.Background(), func(m eventsource.Message) {
			msgs = append(msgs, m)
		})

		var de *eventsource.DecodeError
		Expect(errors.As(err, &de)).To(BeTrue())
		Expect(msgs).To(HaveLen(1))
		Expect(atomic.LoadInt32(&count)).To(Equal(int32(1)))
	})

	It("returns the context error when canceled mid-stream", func() {
		srv := httptest.NewServer(eventStreamHandler(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "data: first\n\n")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := eventsource.NewClient(srv.URL)
		err := c.Subscribe(ctx, func(m eventsource.Message) {
			cancel()
		})
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("gives up after the attempt budget with the last error", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := eventsource.NewClient(srv.URL,
			eventsource.WithMaxAttempts(2),
			eventsource.WithRetryInterval(time.Millisecond),
		)
		err := c.Subscribe(context.Background(), func(eventsource.Message) {})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("giving up after 2 attempts"))
		Expect(err.Error()).To(ContainSubstring("unexpected status"))
	})
})
