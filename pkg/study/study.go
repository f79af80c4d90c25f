// Package study loads one complete study: it decodes a set of image and
// annotation files, assembles the volume and extracts the ROI structures.
// The result is read-only for the lifetime of the loaded study.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/mprview/mprview/pkg/config"
	"github.com/mprview/mprview/pkg/dicom"
	"github.com/mprview/mprview/pkg/dicom/module"
	"github.com/mprview/mprview/pkg/rtstruct"
	"github.com/mprview/mprview/pkg/volume"
)

// Study is everything the display layer consumes: an immutable volume, the
// extracted ROI structures and the study's identifying metadata.
type Study struct {
	// ID identifies this load session, not the DICOM study
	ID string

	Volume     *volume.Volume
	Structures []rtstruct.Structure

	Patient *module.PatientModule
	Info    *module.StudyModule
	Series  *module.SeriesModule
}

// Load reads every regular file under dir and assembles a Study. Per-file
// decode failures drop the file and continue; only a failed volume build or
// a directory with no decodable images is fatal. ctx cancels between file
// reads, the outer unit of cancellation granularity.
func Load(ctx context.Context, dir string, cfg *config.Config) (*Study, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading study directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	buffers := make([][]byte, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable file",
				slog.String("file", name), slog.Any("error", err))
			continue
		}
		buffers = append(buffers, data)
	}

	return LoadBuffers(ctx, buffers, cfg)
}

// LoadBuffers assembles a Study from in-memory file buffers
func LoadBuffers(ctx context.Context, buffers [][]byte, cfg *config.Config) (*Study, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	datasets := volume.DecodeSeries(buffers, cfg.Loading.DecodeWorkers)
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no decodable files in study")
	}

	var images []*dicom.Dataset
	var annotation *dicom.Dataset
	for _, ds := range datasets {
		switch {
		case dicom.IsRTStruct(ds):
			if annotation == nil {
				annotation = ds
			}
		case dicom.IsImage(ds):
			images = append(images, ds)
		default:
			slog.DebugContext(ctx, "ignoring dataset with no pixel data",
				slog.String("modality", dicom.GetModality(ds)))
		}
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("study has no image slices")
	}

	vol, err := volume.Build(images)
	if err != nil {
		return nil, err
	}

	st := &Study{
		ID:      uuid.NewString(),
		Volume:  vol,
		Patient: module.PatientFromDataset(images[0]),
		Info:    module.StudyFromDataset(images[0]),
		Series:  module.SeriesFromDataset(images[0]),
	}

	if annotation != nil {
		opts := rtstruct.Options{
			GroupGapMM:      cfg.Structures.GroupGapMM,
			DedupDepthTolMM: cfg.Structures.DedupDepthTolMM,
		}
		structures, err := rtstruct.ExtractWith(annotation, opts)
		switch {
		case errors.Is(err, rtstruct.ErrNoContourData):
			slog.InfoContext(ctx, "annotation file has no contours")
		case err != nil:
			return nil, err
		default:
			st.Structures = structures
		}
	}

	slog.InfoContext(ctx, "study loaded",
		slog.String("id", st.ID),
		slog.String("volume", vol.String()),
		slog.Int("structures", len(st.Structures)))
	return st, nil
}
