package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/botstream/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below one second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses one decimal of seconds above", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Mark", func() {
	It("marks errors as failures", func() {
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
	})
})

var _ = Describe("Step", func() {
	It("prints the outcome without a spinner when not on a terminal", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "Running 2 tool call(s)", func() error { return nil })

		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(HavePrefix("  " + cliui.SuccessMark + " Running 2 tool call(s) ("))
		Expect(buf.String()).NotTo(ContainSubstring("\r"))
	})

	It("returns the error of fn and marks the failure", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		Expect(cliui.Step(&buf, "Fetching", func() error { return boom })).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})
})

var _ = Describe("Width", func() {
	It("falls back to the default width for buffers", func() {
		Expect(cliui.Width(&bytes.Buffer{})).To(Equal(cliui.DefaultWidth))
		Expect(cliui.IsTerminal(&bytes.Buffer{})).To(BeFalse())
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("renders headings and keeps the text", func() {
		out, err := cliui.RenderMarkdown("# Weather\n\nSunny in **Paris**.", 60)

		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Weather"))
		Expect(out).To(ContainSubstring("Paris"))
	})
})
