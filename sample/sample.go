// Package sample generates spatial point clouds from labeled bodies stored
// in a DVID labelmap instance.  Points are drawn uniformly at random from a
// body's voxels using only the label's block index and the RLE sparse volume
// payloads of the blocks that actually contain selected voxels, so the full
// volume is never materialized.
package sample

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jakobtroidl/dvid-point-cloud/dvid"
	"github.com/jakobtroidl/dvid-point-cloud/labels"
)

// Mode selects a sampling strategy.  Only uniform sampling is implemented;
// the parameter exists so future strategies (e.g. surface-weighted) can be
// added without changing the entry point.
type Mode string

// ModeUniform draws each voxel of the body with equal probability.
const ModeUniform Mode = "uniform"

// Fetcher provides the two DVID reads sampling needs.  *client.Client
// satisfies it; tests substitute doubles.
type Fetcher interface {
	// GetLabelIndex returns the deserialized label index for a label.
	GetLabelIndex(ctx context.Context, uuid, instance string, label uint64) (*labels.Index, error)

	// GetSparsevolBlock returns the RLE-encoded sparse volume of a label
	// restricted to one block.
	GetSparsevolBlock(ctx context.Context, uuid, instance string, label uint64, bcoord dvid.ChunkPoint3d) ([]byte, error)
}

// Uniform samples the given label's voxels uniformly at random at the given
// density in (0, 1], returning voxel coordinates.  A label with no voxels
// yields an empty slice, not an error.
func Uniform(ctx context.Context, f Fetcher, uuid, instance string, label uint64, density float64) ([]dvid.Point3d, error) {
	return Sample(ctx, f, uuid, instance, label, density, ModeUniform)
}

// Sample is the mode-dispatching entry point.  See Uniform.
func Sample(ctx context.Context, f Fetcher, uuid, instance string, label uint64, density float64, mode Mode) ([]dvid.Point3d, error) {
	if mode != ModeUniform {
		return nil, fmt.Errorf("unknown sampling mode %q", mode)
	}
	if density <= 0 || density > 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidDensity, density)
	}

	idx, err := f.GetLabelIndex(ctx, uuid, instance, label)
	if err != nil {
		return nil, err
	}
	blocks, err := idx.BlockCounts()
	if err != nil {
		if errors.Is(err, labels.ErrEmptyVolume) {
			return []dvid.Point3d{}, nil
		}
		return nil, err
	}
	var numVoxels uint64
	for _, bc := range blocks {
		numVoxels += uint64(bc.Count)
	}
	dvid.Debugf("label %d has %d voxels across %d blocks\n", label, numVoxels, len(blocks))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ordinals, err := selectOrdinals(rng, numVoxels, density)
	if err != nil {
		return nil, err
	}
	if len(ordinals) == 0 {
		return []dvid.Point3d{}, nil
	}
	return resolveOrdinals(ctx, f, uuid, instance, label, blocks, ordinals)
}

// resolveOrdinals walks blocks in ascending packed-coordinate order with a
// running global-offset cursor, fetching and decoding only the blocks whose
// voxel range contains a selected ordinal.
func resolveOrdinals(ctx context.Context, f Fetcher, uuid, instance string, label uint64, blocks []labels.BlockCount, ordinals []uint64) ([]dvid.Point3d, error) {
	points := make([]dvid.Point3d, 0, len(ordinals))
	var cursor uint64
	next := 0 // index of next unresolved ordinal
	for _, bc := range blocks {
		if next >= len(ordinals) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		blockEnd := cursor + uint64(bc.Count)
		if ordinals[next] >= blockEnd {
			cursor = blockEnd
			continue
		}
		bcoord := labels.BlockIndexToChunkPoint3d(bc.ZYX)
		payload, err := f.GetSparsevolBlock(ctx, uuid, instance, label, bcoord)
		if err != nil {
			return nil, &BlockFetchError{Block: bcoord, Err: err}
		}
		resolved, err := resolveInBlock(payload, ordinals[next:], cursor, blockEnd, &points)
		if err != nil {
			return nil, &MalformedBlockDataError{Block: bcoord, Err: err}
		}
		next += resolved
		cursor = blockEnd
	}
	if next < len(ordinals) {
		return nil, fmt.Errorf("label %d index declares %d voxels but ordinal %d was never reached",
			label, cursor, ordinals[next])
	}
	return points, nil
}

// resolveInBlock scans the block's runs in emission order, appending a point
// for every ordinal that falls inside [cursor, blockEnd).  Decoding stops as
// soon as the block's last selected ordinal is resolved.  Returns how many
// leading ordinals were consumed.
func resolveInBlock(payload []byte, ordinals []uint64, cursor, blockEnd uint64, points *[]dvid.Point3d) (int, error) {
	scanner, err := dvid.NewRLEScanner(payload)
	if err != nil {
		return 0, err
	}
	blockCount := blockEnd - cursor
	var local uint64 // voxels of this block already scanned
	resolved := 0
	for scanner.Scan() {
		rle := scanner.RLE()
		runEnd := local + uint64(rle.Length())
		if runEnd > blockCount {
			return 0, fmt.Errorf("runs hold more than the %d voxels declared by the label index", blockCount)
		}
		for resolved < len(ordinals) && ordinals[resolved] < cursor+runEnd {
			offset := int32(ordinals[resolved] - cursor - local)
			start := rle.StartPt()
			*points = append(*points, dvid.Point3d{start[0] + offset, start[1], start[2]})
			resolved++
		}
		local = runEnd
		if resolved >= len(ordinals) || ordinals[resolved] >= blockEnd {
			return resolved, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	// Runs exhausted with block ordinals still pending: the payload holds
	// fewer voxels than the label index declared.
	return 0, fmt.Errorf("runs hold %d voxels but the label index declared %d", local, blockCount)
}
