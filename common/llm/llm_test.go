package llm_test

import (
	"encoding/json"

	"anchorline.app/resolver/common/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type classifierSchema struct {
	Code *string `json:"code"`
}

var _ = Describe("New", func() {
	It("requires an API key", func() {
		_, err := llm.New(llm.Config{Provider: llm.ProviderOpenAI})
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("rejects unknown providers", func() {
		_, err := llm.New(llm.Config{Provider: "cohere", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	It("defaults to OpenAI when no provider is set", func() {
		client, err := llm.New(llm.Config{APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Model()).To(Equal("gpt-4o-mini"))
	})

	It("builds an Anthropic client with its default model", func() {
		client, err := llm.New(llm.Config{Provider: llm.ProviderAnthropic, APIKey: "k"})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Model()).To(ContainSubstring("claude"))
	})

	It("honors an explicit model override", func() {
		client, err := llm.New(llm.Config{Provider: llm.ProviderOpenAI, APIKey: "k", Model: "gpt-4o"})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Model()).To(Equal("gpt-4o"))
	})
})

var _ = Describe("GenerateSchema", func() {
	It("produces an inlined schema with additionalProperties disallowed", func() {
		schema := llm.GenerateSchema[classifierSchema]()

		data, err := json.Marshal(schema)
		Expect(err).NotTo(HaveOccurred())

		var decoded map[string]any
		Expect(json.Unmarshal(data, &decoded)).To(Succeed())
		Expect(decoded["additionalProperties"]).To(Equal(false))
		Expect(decoded).NotTo(HaveKey("$defs"))

		props, ok := decoded["properties"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(props).To(HaveKey("code"))
	})
})

var _ = Describe("Temp", func() {
	It("returns a pointer to the given temperature", func() {
		t := llm.Temp(0.1)
		Expect(t).NotTo(BeNil())
		Expect(*t).To(Equal(0.1))
	})
})
