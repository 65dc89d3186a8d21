package optix

import (
	"os"
	"path/filepath"
)

// ModuleLoader resolves a module filename to its compiled device-code
// image. Loaders return a nil slice on any failure; module creation
// rejects empty images and the pipeline setup fails.
type ModuleLoader func(filename string) []byte

// FileModuleLoader returns a loader reading module images from dir.
func FileModuleLoader(dir string) ModuleLoader {
	return func(filename string) []byte {
		data, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			return nil
		}
		return data
	}
}

// StaticModuleLoader returns a loader serving the same image for every
// module. Used by the in-tree commands and tests together with the
// simulation backend, which only checks that images are non-empty.
func StaticModuleLoader(image []byte) ModuleLoader {
	return func(string) []byte { return image }
}
