package scanning

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tesseract", func() {
	Describe("NewTesseract", func() {
		It("defaults to Arabic", func() {
			t := NewTesseract()
			Expect(t.languages).To(Equal([]string{"ara"}))
			Expect(t.Name()).To(Equal("tesseract"))
		})

		It("keeps the given languages", func() {
			t := NewTesseract("ara", "eng")
			Expect(t.languages).To(Equal([]string{"ara", "eng"}))
		})
	})

	Describe("Generate", func() {
		It("returns the context error without starting a client", func() {
			t := NewTesseract()
			t.clientFactory = nil

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := t.Generate(ctx, Request{Image: &Payload{Data: []byte("jpeg")}})
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
