//go:build llama

package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"imaged/internal/common/fsutil"
)

const translatorBuilt = true

const (
	translatorCtx     = 512
	translatorThreads = 4
	translatorTokens  = 256
)

type llamaTranslator struct {
	mu    sync.Mutex // go-llama.cpp models are not safe for concurrent Predict
	model *llama.LLama
}

// OpenTranslator loads the first *.gguf in dir on the host.
func OpenTranslator(dir string) (Translator, error) {
	if !fsutil.IsDir(dir) {
		return nil, fmt.Errorf("translator directory not found: %s", dir)
	}
	path, err := firstGGUF(dir)
	if err != nil {
		return nil, err
	}
	m, err := llama.New(path, llama.SetContext(translatorCtx))
	if err != nil {
		return nil, fmt.Errorf("load translator %s: %w", path, err)
	}
	return &llamaTranslator{model: m}, nil
}

func firstGGUF(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".gguf") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no .gguf weights in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

func (t *llamaTranslator) Translate(ctx context.Context, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model == nil {
		return "", errors.New("translator closed")
	}
	t.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	prompt := "Translate from Russian to English.\nRussian: " + text + "\nEnglish:"
	out, err := t.model.Predict(prompt,
		llama.SetTokens(translatorTokens),
		llama.SetThreads(translatorThreads),
		llama.SetTemperature(0),
		llama.SetStopWords("\n"),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (t *llamaTranslator) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model != nil {
		t.model.Free()
		t.model = nil
	}
	return nil
}
