package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: artifact not found: 0b6e...
	Error string `json:"error" example:"artifact not found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// LoadResponse is returned by POST /models/{uid}/load.
type LoadResponse struct {
	LoadedModel string `json:"loaded_model" example:"6f1c2a3e-9d7b-4c55-8f0e-1a2b3c4d5e6f"`
}

// ReloadResponse is returned by POST /reload.
type ReloadResponse struct {
	ReloadedModel string `json:"reloaded_model" example:"6f1c2a3e-9d7b-4c55-8f0e-1a2b3c4d5e6f"`
}

// LoadedResponse is returned by GET /loaded. UID is null when nothing is loaded.
type LoadedResponse struct {
	UID *string `json:"uid"`
}

// OKResponse is returned by endpoints with no payload.
type OKResponse struct {
	Status string `json:"status" example:"ok"`
}

// GenerateRequest carries the parameters for POST /generate.
// Zero values are replaced by server defaults.
type GenerateRequest struct {
	// Required prompt text.
	// example: a lighthouse at dusk, oil painting
	Prompt string `json:"prompt" example:"a lighthouse at dusk, oil painting"`
	// Optional negative prompt.
	// example: low quality, bad quality
	NegativePrompt string `json:"negative_prompt,omitempty" example:"low quality, bad quality"`
	// Number of denoising steps.
	// example: 25
	InferenceSteps int `json:"inference_steps,omitempty" example:"25"`
	// Classifier-free guidance scale.
	// example: 7.5
	GuidanceScale float64 `json:"guidance_scale,omitempty" example:"7.5"`
	// Random seed; nil lets the runtime choose.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
	// Output height in pixels (multiple of 8).
	// example: 512
	Height int `json:"height,omitempty" example:"512"`
	// Output width in pixels (multiple of 8).
	// example: 512
	Width int `json:"width,omitempty" example:"512"`
	// Number of images to generate.
	// example: 1
	Count int `json:"count,omitempty" example:"1"`
}

// GenerateResponse holds base64-encoded PNG images.
type GenerateResponse struct {
	Model  string   `json:"model"`
	Loader string   `json:"loader"`
	Images []string `json:"images"`
	// Prompt as submitted.
	Prompt string `json:"prompt"`
	DurMS  int64  `json:"dur_ms"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Active slot state: unloaded, loading or loaded.
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Uid of the loaded artifact.
	CurrentModel string `json:"current_model,omitempty"`
	// Uid being loaded while State is loading.
	PendingModel string `json:"pending_model,omitempty"`
	// Loader that produced the current handle.
	// example: kandinsky22
	Loader string `json:"loader,omitempty" example:"kandinsky22"`
	// Device placement in effect.
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// Compute dtype requested from loaders.
	// example: float16
	DType string `json:"dtype" example:"float16"`
	// Last load error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Inference calls currently holding the handle.
	Inflight int `json:"inflight"`
	// True while an unload waits for in-flight inference to finish.
	Draining bool `json:"draining"`
	// Number of artifacts in the index.
	// example: 3
	Artifacts int `json:"artifacts" example:"3"`
	// Total successful loads since start.
	// example: 2
	LoadsTotal uint64 `json:"loads_total" example:"2"`
	// Registered directory-bundle plugins in dispatch order.
	Plugins []string `json:"plugins"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
