package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/session"
)

// newService builds an in-process service. Sizes are unlimited since the
// files are local.
func newService(opts *rootOptions) *core.Service {
	return core.NewService(core.Deps{
		Store: session.NewMemoryStore(nil, 0, 0),
	}, core.Options{
		Thresholds:       opts.thresholds(),
		MaxParallelFiles: 4,
		CriticalGate:     true,
	})
}

// uploadPaths opens every path and uploads them into a new session. Files
// are parsed into memory, so they are closed on return.
func uploadPaths(ctx context.Context, svc *core.Service, paths []string) (*core.UploadResult, error) {
	files := make([]core.UploadFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		files = append(files, core.UploadFile{Name: filepath.Base(p), Size: info.Size(), Reader: f})
	}
	return svc.Upload(ctx, files)
}

// loadConfig reads a cleaning config; .json files are parsed as JSON and
// everything else as YAML.
func loadConfig(path string) (*cleaning.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) == ".json" {
		return cleaning.ParseJSON(data)
	}
	return cleaning.ParseYAML(data)
}
