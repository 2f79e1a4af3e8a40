package types

// Artifact kinds as written to the index snapshot.
const (
	ArtifactTypeFile      = "file"
	ArtifactTypeDirectory = "directory"
)

// Artifact is one entry of the persisted index snapshot and of GET /models.
// The snapshot is a JSON object keyed by artifact uid.
type Artifact struct {
	// Artifact kind: "file" for a single weight file, "directory" for a bundle.
	// example: file
	Type string `json:"type" example:"file"`
	// Weight file name relative to the models directory (file artifacts only).
	// example: dreamshaper_8.safetensors
	Filename string `json:"filename,omitempty" example:"dreamshaper_8.safetensors"`
	// Bundle directory name relative to the models directory (directory artifacts only).
	// example: kandinsky-2-2
	Dirname string `json:"dirname,omitempty" example:"kandinsky-2-2"`
	// File size in bytes at discovery time; 0 for directories.
	// example: 2132625894
	Filesize int64 `json:"filesize" example:"2132625894"`
	// Loader that last loaded this artifact successfully, or null.
	// example: SD15_BUILTIN
	Loader *string `json:"loader" example:"SD15_BUILTIN"`
}

// Index is the full uid -> artifact snapshot.
type Index map[string]Artifact
