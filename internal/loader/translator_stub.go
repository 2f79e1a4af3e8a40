//go:build !llama

package loader

import (
	"context"
	"fmt"

	"imaged/internal/common/fsutil"
)

// translatorBuilt reports whether a real translation runtime is linked in.
const translatorBuilt = false

type stubTranslator struct{ dir string }

// OpenTranslator checks that dir exists. Without the 'llama' build tag the
// returned translator cannot translate.
func OpenTranslator(dir string) (Translator, error) {
	if !fsutil.IsDir(dir) {
		return nil, fmt.Errorf("translator directory not found: %s", dir)
	}
	return stubTranslator{dir: dir}, nil
}

func (s stubTranslator) Translate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", ErrDependencyUnavailable("translation not built (missing 'llama' build tag)")
}

func (stubTranslator) Close() error { return nil }
