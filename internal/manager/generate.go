package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"imaged/internal/loader"
)

const (
	maxSteps  = 150
	maxImages = 4
)

// GenerateParams are caller-supplied generation parameters. Zero values take
// the configured defaults.
type GenerateParams struct {
	Prompt         string
	NegativePrompt string
	Steps          int
	Guidance       float64
	Seed           *int64
	Width          int
	Height         int
	Count          int
}

// GenerateResult is the outcome of one generation.
type GenerateResult struct {
	UID      string
	Loader   string
	Images   [][]byte
	Duration time.Duration
}

// Generate runs one generation on the loaded model. Requests are admitted one
// at a time; a request that waits longer than max wait fails with Busy.
func (m *Manager) Generate(ctx context.Context, p GenerateParams) (*GenerateResult, error) {
	req, err := m.prepare(p)
	if err != nil {
		return nil, err
	}
	release, err := m.beginGeneration(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	lease, err := m.Acquire()
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	start := time.Now()
	res, err := runLease(ctx, lease, req)
	if err != nil {
		m.log.Warn().Err(err).Str("uid", lease.UID()).Msg("generation failed")
		return nil, err
	}
	if len(res.Images) == 0 {
		return nil, errors.New("pipeline produced no images")
	}
	took := time.Since(start)
	m.log.Debug().Str("uid", lease.UID()).Int("images", len(res.Images)).Dur("took", took).Msg("generation done")
	return &GenerateResult{UID: lease.UID(), Loader: lease.Loader(), Images: res.Images, Duration: took}, nil
}

// runLease isolates pipeline panics from the caller.
func runLease(ctx context.Context, l *Lease, req loader.Request) (res *loader.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
	}()
	res, err = l.Run(ctx, req)
	if err == nil && res == nil {
		err = errors.New("pipeline returned no result")
	}
	return res, err
}

// prepare applies defaults and validates p.
func (m *Manager) prepare(p GenerateParams) (loader.Request, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return loader.Request{}, invalidRequestError{msg: "prompt is required"}
	}
	req := loader.Request{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Steps:          p.Steps,
		Guidance:       p.Guidance,
		Seed:           p.Seed,
		Width:          p.Width,
		Height:         p.Height,
		Count:          p.Count,
	}
	if req.Steps == 0 {
		req.Steps = m.gen.Steps
	}
	if req.Guidance == 0 {
		req.Guidance = m.gen.Guidance
	}
	if req.Width == 0 {
		req.Width = m.gen.Width
	}
	if req.Height == 0 {
		req.Height = m.gen.Height
	}
	if req.Count == 0 {
		req.Count = 1
	}
	switch {
	case req.Steps < 1 || req.Steps > maxSteps:
		return req, invalidRequestError{msg: fmt.Sprintf("steps must be in 1..%d", maxSteps)}
	case req.Guidance < 0:
		return req, invalidRequestError{msg: "guidance_scale must not be negative"}
	case req.Count < 1 || req.Count > maxImages:
		return req, invalidRequestError{msg: fmt.Sprintf("count must be in 1..%d", maxImages)}
	}
	for _, d := range []struct {
		name string
		v    int
	}{{"width", req.Width}, {"height", req.Height}} {
		if d.v <= 0 || d.v > m.gen.MaxResolution || d.v%8 != 0 {
			return req, invalidRequestError{msg: fmt.Sprintf("%s must be a multiple of 8 in 8..%d", d.name, m.gen.MaxResolution)}
		}
	}
	return req, nil
}
