package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		ollama  *Ollama
		payload *Payload
		text    string
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		payload = &Payload{Data: []byte("jpeg-bytes"), Width: 1, Height: 1}

		var newErr error
		ollama, newErr = NewOllama(server.URL(), "qwen2.5vl")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = ollama.Generate(context.Background(), NewRequest(payload))
	})

	When("the server answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.VerifyJSONRepresenting(ollamaChatRequest{
					Model:  "qwen2.5vl",
					Stream: false,
					Think:  false,
					Messages: []ollamaMessage{
						{
							Role:    "user",
							Content: arabicExtractionPrompt,
							Images:  []string{"anBlZy1ieXRlcw=="},
						},
					},
					Options: ollamaOptions{Temperature: 0},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: " نص "},
					Done:    true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the message content", func() {
			Expect(text).To(Equal(" نص "))
		})
	})

	When("the server returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("should return an error with the status", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the server returns malformed JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, "{not json"))
		})

		It("should return a decoding error", func() {
			Expect(err).To(MatchError(ContainSubstring("decoding response")))
		})
	})
})
