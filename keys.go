package agentdeck

// Well-known Session.Options keys shared across adapter backends.
// Backend-specific keys are namespaced in their own packages.
const (
	// OptionStream requests a long-lived streaming session with an open
	// input path (chat mode). Backends without a streaming capability
	// ignore this key and run one-shot. Boolean-valued; see ParseBoolOption.
	OptionStream = "stream"

	// OptionSystemPrompt sets the backend's system prompt, where supported.
	OptionSystemPrompt = "system_prompt"

	// OptionMaxTurns bounds the number of agent turns, where supported.
	// Positive-integer-valued; see ParsePositiveIntOption.
	OptionMaxTurns = "max_turns"
)
