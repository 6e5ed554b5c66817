package prompts

// DefaultSystem is the assistant persona when no prompt is configured.
const DefaultSystem = "You are a helpful AI assistant."

// FallbackReply is the fixed degraded reply emitted when the generation stage
// fails. A conversational client must always receive a response envelope per
// turn, so this text stands in for the model's.
const FallbackReply = "Sorry, I couldn't process your request."
