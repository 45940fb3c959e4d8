package llm_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolworks/spool/pkg/llm"
)

var _ = Describe("Accumulator", func() {
	It("reconstructs full content from multiple chunks", func() {
		var acc llm.Accumulator
		acc.Add(&llm.StreamChunk{Message: llm.NewTextMessage("assistant", "Hello")})
		acc.Add(&llm.StreamChunk{Message: llm.NewTextMessage("assistant", ", ")})
		acc.Add(&llm.StreamChunk{Message: llm.NewTextMessage("assistant", "world")})
		acc.Add(&llm.StreamChunk{Done: true, StopReason: "stop"})

		resp := acc.Response()
		Expect(resp.Message.GetText()).To(Equal("Hello, world"))
		Expect(resp.Done).To(BeTrue())
		Expect(resp.StopReason).To(Equal("stop"))
	})

	It("ignores nil chunks", func() {
		var acc llm.Accumulator
		acc.Add(nil)
		acc.Add(&llm.StreamChunk{Message: llm.NewTextMessage("assistant", "ok")})
		acc.Add(nil)

		Expect(acc.Text()).To(Equal("ok"))
		Expect(acc.Done()).To(BeFalse())
	})

	It("keeps the last non-empty model and stop reason", func() {
		var acc llm.Accumulator
		acc.Add(&llm.StreamChunk{Model: "gpt-4o-mini"})
		acc.Add(&llm.StreamChunk{Message: llm.NewTextMessage("assistant", "hi")})
		acc.Add(&llm.StreamChunk{Done: true, StopReason: "length"})

		resp := acc.Response()
		Expect(resp.Model).To(Equal("gpt-4o-mini"))
		Expect(resp.StopReason).To(Equal("length"))
	})

	It("merges usage split across chunks", func() {
		var acc llm.Accumulator
		acc.Add(&llm.StreamChunk{Usage: &llm.Usage{PromptTokens: 12, CacheReadInputTokens: 4}})
		acc.Add(&llm.StreamChunk{Message: llm.NewTextMessage("assistant", "hi")})
		acc.Add(&llm.StreamChunk{Done: true, Usage: &llm.Usage{CompletionTokens: 7}})

		resp := acc.Response()
		Expect(resp.Usage).NotTo(BeNil())
		Expect(resp.Usage.PromptTokens).To(Equal(12))
		Expect(resp.Usage.CompletionTokens).To(Equal(7))
		Expect(resp.Usage.TotalTokens).To(Equal(19))
		Expect(resp.Usage.CacheReadInputTokens).To(Equal(4))
	})

	It("omits usage when no tokens were reported", func() {
		var acc llm.Accumulator
		acc.Add(&llm.StreamChunk{Message: llm.NewTextMessage("assistant", "hi"), Done: true})

		Expect(acc.Response().Usage).To(BeNil())
	})

	It("preserves the first chunk timestamp", func() {
		at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		var acc llm.Accumulator
		acc.Add(&llm.StreamChunk{CreatedAt: at})
		acc.Add(&llm.StreamChunk{CreatedAt: at.Add(time.Second), Done: true})

		Expect(acc.Response().CreatedAt).To(Equal(at))
	})
})
