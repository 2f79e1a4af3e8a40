package loader

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// maxHeaderBytes bounds the JSON header we are willing to read.
	maxHeaderBytes = 100 << 20

	ArchSD15 = "sd15"
	ArchSDXL = "sdxl"
)

// sdxlMarkers are tensor-name fragments only present in SDXL checkpoints.
var sdxlMarkers = []string{"text_encoder_2", "add_time_cond", "pooled", "conditioner.embedders.1"}

// readTensorNames returns the tensor names listed in a safetensors header.
// Tensor data is never read.
func readTensorNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var n uint64
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	if n == 0 || n > maxHeaderBytes {
		return nil, fmt.Errorf("invalid header length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var hdr map[string]json.RawMessage
	if err := json.Unmarshal(buf, &hdr); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	names := make([]string, 0, len(hdr))
	for k := range hdr {
		if k == "__metadata__" {
			continue
		}
		names = append(names, k)
	}
	if len(names) == 0 {
		return nil, errors.New("header lists no tensors")
	}
	return names, nil
}

// detectArch classifies a checkpoint by its tensor names.
func detectArch(names []string) string {
	for _, k := range names {
		for _, m := range sdxlMarkers {
			if strings.Contains(k, m) {
				return ArchSDXL
			}
		}
	}
	return ArchSD15
}
