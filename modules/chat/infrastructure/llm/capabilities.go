package llm

import "strings"

// Capabilities describes which request parameters a model family accepts.
// Reasoning families reject sampling knobs outright, so the clients omit
// them instead of sending invalid combinations.
type Capabilities struct {
	SupportsSampling    bool // temperature, top_p
	SupportsPenalties   bool // frequency_penalty, presence_penalty
	SupportsStreaming   bool
	SupportsStop        bool
	SupportsReasoning   bool // accepts a reasoning_effort tier
	UsesCompletionLimit bool // max_completion_tokens instead of max_tokens
}

type capabilityRule struct {
	prefix string
	caps   Capabilities
}

// capabilityTable maps model-id prefixes to capability sets. First match
// wins, so longer prefixes go first within a family.
var capabilityTable = []capabilityRule{
	{prefix: "o1", caps: reasoningCaps},
	{prefix: "o3", caps: reasoningCaps},
	{prefix: "o4", caps: reasoningCaps},
	{prefix: "gpt-5", caps: reasoningCaps},
	{prefix: "gpt-4o", caps: standardCaps},
	{prefix: "gpt-4", caps: standardCaps},
	{prefix: "gpt-3.5", caps: standardCaps},
	{prefix: "deepseek-reasoner", caps: deepseekReasoningCaps},
	{prefix: "deepseek-r1", caps: deepseekReasoningCaps},
	{prefix: "deepseek", caps: standardCaps},
}

var (
	standardCaps = Capabilities{
		SupportsSampling:  true,
		SupportsPenalties: true,
		SupportsStreaming: true,
		SupportsStop:      true,
	}
	reasoningCaps = Capabilities{
		SupportsStreaming:   true,
		SupportsReasoning:   true,
		UsesCompletionLimit: true,
	}
	// DeepSeek's reasoner ignores sampling but keeps the classic
	// max_tokens parameter name.
	deepseekReasoningCaps = Capabilities{
		SupportsStreaming: true,
		SupportsStop:      true,
	}
)

// CapabilitiesFor resolves the capability set for a model id. Unknown models
// get the permissive standard set.
func CapabilitiesFor(modelID string) Capabilities {
	id := strings.ToLower(modelID)
	for _, rule := range capabilityTable {
		if strings.HasPrefix(id, rule.prefix) {
			return rule.caps
		}
	}
	return standardCaps
}

// ApplyCapabilities strips request parameters the model does not accept.
func ApplyCapabilities(req Request) Request {
	caps := CapabilitiesFor(req.ModelID)
	if !caps.SupportsSampling {
		req.Temperature = nil
		req.TopP = nil
	}
	if !caps.SupportsPenalties {
		req.FrequencyPenalty = nil
		req.PresencePenalty = nil
	}
	if !caps.SupportsStop {
		req.Stop = nil
	}
	if !caps.SupportsReasoning {
		req.ReasoningEffort = ""
	}
	return req
}
