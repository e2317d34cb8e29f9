// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/OCAP2/roverwatch/pkg/core"
)

const (
	exportPrefix     = "rover_data_"
	exportTimeLayout = "20060102_150405"
)

// exportFilename returns the file name a run is exported under.
func exportFilename(d *core.Dataset, compress bool) string {
	name := exportPrefix + d.StartedAt.UTC().Format(exportTimeLayout) + ".json"
	if compress {
		name += ".gz"
	}
	return name
}

// exportJSON writes the record array of d to the output directory. The file
// appears under its final name only once it is complete.
func (b *Backend) exportJSON(d *core.Dataset) error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(b.cfg.OutputDir, ".rover_data_*.partial")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := encodeRecords(tmp, d.Records(), b.cfg.CompressOutput); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write export: %w", err)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, exportFilename(d, b.cfg.CompressOutput))
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move export into place: %w", err)
	}

	b.lastExportPath = outputPath
	b.lastExportMeta = core.UploadMetadataFor(d)
	return nil
}

// encodeRecords writes records as indented JSON, or compact gzipped JSON.
func encodeRecords(w io.Writer, records []core.Record, compress bool) error {
	if !compress {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(records); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// loadExports reads every run previously exported to dir, oldest first. The
// file name without extensions becomes the run ID, its timestamp the start
// time and its modification time the finish time.
func loadExports(dir string) ([]*core.Dataset, error) {
	var paths []string
	for _, pattern := range []string{exportPrefix + "*.json", exportPrefix + "*.json.gz"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	runs := make([]*core.Dataset, 0, len(paths))
	for _, path := range paths {
		d, err := loadExport(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		runs = append(runs, d)
	}
	return runs, nil
}

func loadExport(path string) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}

	var records []core.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, err
	}

	runID := strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".gz"), ".json")
	startedAt, err := time.Parse(exportTimeLayout, strings.TrimPrefix(runID, exportPrefix))
	if err != nil {
		return nil, fmt.Errorf("unexpected file name: %w", err)
	}
	return core.DatasetFromRecords(runID, "", startedAt, info.ModTime().UTC(), records)
}
