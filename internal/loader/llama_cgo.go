//go:build llama

package loader

// Link flags for the in-process translator.
// - rpath $ORIGIN so libllama.so is found next to the binary (./bin).
// - -L${SRCDIR}/../../bin for link time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
