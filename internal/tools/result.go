// Package tools defines the tool abstraction the agent exposes to the LLM
// and the built-in tool set (filesystem, shell, web, messaging, cron,
// subagents, skills, memory).
package tools

// Result is the outcome of a tool execution. ForLLM is what goes back into
// the conversation as the tool message; user-facing extras (if any) ride on
// ForUser.
type Result struct {
	ForLLM  string
	ForUser string
	IsError bool
	Silent  bool
}

// Ok builds a success result.
func Ok(content string) *Result {
	return &Result{ForLLM: content}
}

// Err builds an error result. The "error: " prefix tells the model the call
// failed and lets it recover.
func Err(msg string) *Result {
	return &Result{ForLLM: "error: " + msg, IsError: true}
}

// SilentOk builds a success result that produces no user-visible output.
func SilentOk(content string) *Result {
	return &Result{ForLLM: content, Silent: true}
}
