// Package solveapi is the bundled solving backend: an HTTP service that
// accepts a screenshot as a data URL, asks a vision model for the answer, and
// returns {answer, confidence, rationale}.
//
// Two model providers are available: a local Ollama server and the Gemini
// API. Answers are cached by image digest so repeated triggers on an unchanged
// screen do not pay for another model call.
package solveapi
