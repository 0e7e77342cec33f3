// Package model defines the language-model capability consumed by the
// fabric: a single synchronous call mapping role prompt + query + context to
// text. Provider adapters live in subpackages (gemini, anthropic, openai);
// the fabric is agnostic to the provider's protocol.
package model
