package cli

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"imaged/pkg/types"
)

// clientCommands mirror the HTTP routes one to one.
func clientCommands(opts *Options) []*cobra.Command {
	simple := func(use, short string, call func(cmd *cobra.Command, args []string) (any, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := call(cmd, args)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), v)
			},
		}
	}

	update := simple("update", "Rescan the server's models directory", func(cmd *cobra.Command, _ []string) (any, error) {
		c, err := newClient(opts)
		if err != nil {
			return nil, err
		}
		return c.Rescan(cmd.Context())
	})
	models := simple("models", "List indexed artifacts", func(cmd *cobra.Command, _ []string) (any, error) {
		c, err := newClient(opts)
		if err != nil {
			return nil, err
		}
		return c.Models(cmd.Context())
	})
	unload := simple("unload", "Unload the active model", func(cmd *cobra.Command, _ []string) (any, error) {
		c, err := newClient(opts)
		if err != nil {
			return nil, err
		}
		return c.Unload(cmd.Context())
	})
	reload := simple("reload", "Reload the active model from disk", func(cmd *cobra.Command, _ []string) (any, error) {
		c, err := newClient(opts)
		if err != nil {
			return nil, err
		}
		return c.Reload(cmd.Context())
	})
	loaded := simple("loaded", "Show the uid in the active slot", func(cmd *cobra.Command, _ []string) (any, error) {
		c, err := newClient(opts)
		if err != nil {
			return nil, err
		}
		return c.Loaded(cmd.Context())
	})
	status := simple("status", "Show server status", func(cmd *cobra.Command, _ []string) (any, error) {
		c, err := newClient(opts)
		if err != nil {
			return nil, err
		}
		return c.Status(cmd.Context())
	})

	load := &cobra.Command{
		Use:     "load <uid>",
		Short:   "Load an artifact into the active slot",
		Example: "  imaged load 6f1c2a3e-9d7b-4c55-8f0e-1a2b3c4d5e6f",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			res, err := c.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	return []*cobra.Command{update, models, load, unload, reload, loaded, status, newGenCmd(opts)}
}

type genFlags struct {
	prompt   string
	negative string
	steps    int
	guidance float64
	seed     int64
	width    int
	height   int
	count    int
	out      string
}

// genSummary replaces inline images once they are written to disk.
type genSummary struct {
	Model  string   `json:"model"`
	Loader string   `json:"loader"`
	Files  []string `json:"files"`
	DurMS  int64    `json:"dur_ms"`
}

func newGenCmd(opts *Options) *cobra.Command {
	var gf genFlags
	cmd := &cobra.Command{
		Use:     "gen",
		Short:   "Generate images with the loaded model",
		Example: "  imaged gen --prompt \"a lighthouse at dusk\" --steps 30 --out ./out",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.GenerateRequest{
				Prompt:         gf.prompt,
				NegativePrompt: gf.negative,
				InferenceSteps: gf.steps,
				GuidanceScale:  gf.guidance,
				Width:          gf.width,
				Height:         gf.height,
				Count:          gf.count,
			}
			if cmd.Flags().Changed("seed") {
				seed := gf.seed
				req.Seed = &seed
			}
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			res, err := c.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if gf.out == "" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			files, err := writeImages(gf.out, res)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), genSummary{Model: res.Model, Loader: res.Loader, Files: files, DurMS: res.DurMS})
		},
	}
	f := cmd.Flags()
	f.StringVar(&gf.prompt, "prompt", "", "Prompt text")
	f.StringVar(&gf.negative, "negative", "", "Negative prompt")
	f.IntVar(&gf.steps, "steps", 0, "Denoising steps (0 = server default)")
	f.Float64Var(&gf.guidance, "guidance", 0, "Guidance scale (0 = server default)")
	f.Int64Var(&gf.seed, "seed", 0, "Random seed (unset lets the runtime choose)")
	f.IntVar(&gf.width, "width", 0, "Output width, multiple of 8 (0 = server default)")
	f.IntVar(&gf.height, "height", 0, "Output height, multiple of 8 (0 = server default)")
	f.IntVar(&gf.count, "count", 0, "Images to generate (0 = 1)")
	f.StringVar(&gf.out, "out", "", "Write images as PNG files into this directory instead of printing base64")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func writeImages(dir string, res types.GenerateResponse) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	files := make([]string, 0, len(res.Images))
	for i, enc := range res.Images {
		b, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return files, fmt.Errorf("image %d: %w", i, err)
		}
		p := filepath.Join(dir, fmt.Sprintf("%s-%d.png", res.Model, i))
		if err := os.WriteFile(p, b, 0o644); err != nil {
			return files, err
		}
		files = append(files, p)
	}
	return files, nil
}
