package loader

import (
	"context"
	"unicode"
)

// Translator renders a prompt into English.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
	Close() error
}

// hasCyrillic reports whether s contains any Cyrillic letter.
func hasCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

// translatePrompts rewrites the prompt fields that need translation.
func translatePrompts(ctx context.Context, tr Translator, req Request) (Request, error) {
	if hasCyrillic(req.Prompt) {
		out, err := tr.Translate(ctx, req.Prompt)
		if err != nil {
			return req, err
		}
		req.Prompt = out
	}
	if hasCyrillic(req.NegativePrompt) {
		out, err := tr.Translate(ctx, req.NegativePrompt)
		if err != nil {
			return req, err
		}
		req.NegativePrompt = out
	}
	return req, nil
}

// TranslatorBuilt reports whether this binary can translate prompts.
func TranslatorBuilt() bool { return translatorBuilt }
