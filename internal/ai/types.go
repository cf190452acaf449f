// Package ai generates auto-replies through an OpenAI-compatible chat
// completion endpoint.
package ai

// Turn is one entry of the conversation context sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FallbackReply is sent when the completion backend fails or returns an
// empty result, so the contact always gets an answer.
const FallbackReply = "Sorry, I could not generate a response right now. Please try again in a moment."
