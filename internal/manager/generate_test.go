package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imaged/internal/loader"
)

func loadedFixture(t *testing.T, p *fakePlugin, mutate func(*ManagerConfig)) *fixture {
	t.Helper()
	fx := newFixture(t, mutate, p)
	require.NoError(t, fx.m.Load(testCtx(t), fx.uid(t, "alpha-bundle")))
	return fx
}

func TestGenerate_AppliesDefaults(t *testing.T) {
	var got loader.Request
	alpha := &fakePlugin{name: "fake-alpha", match: "alpha", run: func(_ context.Context, req loader.Request) (*loader.Result, error) {
		got = req
		return &loader.Result{Images: [][]byte{[]byte("img")}}, nil
	}}
	fx := loadedFixture(t, alpha, nil)

	res, err := fx.m.Generate(testCtx(t), GenerateParams{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, fx.uid(t, "alpha-bundle"), res.UID)
	assert.Equal(t, "fake-alpha", res.Loader)
	assert.Equal(t, [][]byte{[]byte("img")}, res.Images)
	assert.Equal(t, 25, got.Steps)
	assert.Equal(t, 7.5, got.Guidance)
	assert.Equal(t, 512, got.Width)
	assert.Equal(t, 512, got.Height)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 0, fx.m.Inflight())
}

func TestGenerate_Validation(t *testing.T) {
	fx := loadedFixture(t, &fakePlugin{name: "fake-alpha", match: "alpha"}, func(c *ManagerConfig) {
		c.Generation.MaxResolution = 1024
	})
	cases := map[string]GenerateParams{
		"empty prompt":      {Prompt: "  "},
		"steps too high":    {Prompt: "x", Steps: 151},
		"negative steps":    {Prompt: "x", Steps: -1},
		"width not mult 8":  {Prompt: "x", Width: 513},
		"height over limit": {Prompt: "x", Height: 1032},
		"too many images":   {Prompt: "x", Count: 5},
		"negative guidance": {Prompt: "x", Guidance: -1},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.m.Generate(testCtx(t), p)
			assert.True(t, IsInvalidRequest(err), "got %v", err)
		})
	}
	_, err := fx.m.Generate(testCtx(t), GenerateParams{Prompt: "x", Width: 1024, Height: 768, Count: 4, Steps: 150})
	assert.NoError(t, err)
}

func TestGenerate_NotLoaded(t *testing.T) {
	fx := newFixture(t, nil)
	_, err := fx.m.Generate(testCtx(t), GenerateParams{Prompt: "x"})
	assert.True(t, IsNotLoaded(err))
}

func TestGenerate_AdmissionTimeout(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	alpha := &fakePlugin{name: "fake-alpha", match: "alpha", run: func(_ context.Context, _ loader.Request) (*loader.Result, error) {
		entered <- struct{}{}
		<-release
		return &loader.Result{Images: [][]byte{{1}}}, nil
	}}
	fx := loadedFixture(t, alpha, func(c *ManagerConfig) { c.MaxWait = 30 * time.Millisecond })

	done := make(chan error, 1)
	go func() {
		_, err := fx.m.Generate(context.Background(), GenerateParams{Prompt: "first"})
		done <- err
	}()
	<-entered

	_, err := fx.m.Generate(testCtx(t), GenerateParams{Prompt: "second"})
	assert.True(t, IsTooBusy(err), "got %v", err)

	close(release)
	require.NoError(t, <-done)
}

func TestGenerate_PipelineErrors(t *testing.T) {
	boom := errors.New("cuda oom")
	alpha := &fakePlugin{name: "fake-alpha", match: "alpha", run: func(context.Context, loader.Request) (*loader.Result, error) {
		return nil, boom
	}}
	fx := loadedFixture(t, alpha, nil)
	_, err := fx.m.Generate(testCtx(t), GenerateParams{Prompt: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, fx.m.Inflight())

	alpha.run = func(context.Context, loader.Request) (*loader.Result, error) { panic("kaboom") }
	_, err = fx.m.Generate(testCtx(t), GenerateParams{Prompt: "x"})
	assert.ErrorContains(t, err, "kaboom")
	assert.Equal(t, 0, fx.m.Inflight())

	alpha.run = func(context.Context, loader.Request) (*loader.Result, error) {
		return nil, loader.ErrDependencyUnavailable("no runtime")
	}
	_, err = fx.m.Generate(testCtx(t), GenerateParams{Prompt: "x"})
	assert.True(t, IsDependencyUnavailable(err))
}
