package sample

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jakobtroidl/dvid-point-cloud/dvid"
	"github.com/jakobtroidl/dvid-point-cloud/labels"
)

// fakeFetcher serves a canned label index and per-block payloads, recording
// which blocks get fetched.
type fakeFetcher struct {
	idx      *labels.Index
	payloads map[dvid.ChunkPoint3d][]byte
	failing  map[dvid.ChunkPoint3d]error
	fetched  []dvid.ChunkPoint3d
}

func (f *fakeFetcher) GetLabelIndex(ctx context.Context, uuid, instance string, label uint64) (*labels.Index, error) {
	return f.idx, nil
}

func (f *fakeFetcher) GetSparsevolBlock(ctx context.Context, uuid, instance string, label uint64, bcoord dvid.ChunkPoint3d) ([]byte, error) {
	f.fetched = append(f.fetched, bcoord)
	if err := f.failing[bcoord]; err != nil {
		return nil, err
	}
	payload, found := f.payloads[bcoord]
	if !found {
		return nil, fmt.Errorf("no payload for block %s", bcoord)
	}
	return payload, nil
}

// blockPayload encodes a sparse volume filling the first count voxels of the
// block in X-run order.
func blockPayload(t *testing.T, bcoord dvid.ChunkPoint3d, count uint32) []byte {
	t.Helper()
	origin := bcoord.MinPoint()
	var rles dvid.RLEs
	var y int32
	for count > 0 {
		runLen := int32(dvid.BlockSize)
		if count < uint32(runLen) {
			runLen = int32(count)
		}
		rles = append(rles, dvid.NewRLE(dvid.Point3d{origin[0], origin[1] + y, origin[2]}, runLen))
		count -= uint32(runLen)
		y++
	}
	payload, err := dvid.EncodeSparseVol(rles)
	if err != nil {
		t.Fatalf("encoding block payload: %v\n", err)
	}
	return payload
}

func newFakeFetcher(t *testing.T, label uint64, counts map[dvid.ChunkPoint3d]uint32) *fakeFetcher {
	t.Helper()
	f := &fakeFetcher{
		idx:      &labels.Index{Label: label, Blocks: make(map[uint64]*labels.SVCount)},
		payloads: make(map[dvid.ChunkPoint3d][]byte),
		failing:  make(map[dvid.ChunkPoint3d]error),
	}
	for bcoord, count := range counts {
		zyx := labels.EncodeBlockIndex(bcoord[0], bcoord[1], bcoord[2])
		f.idx.Blocks[zyx] = &labels.SVCount{Counts: map[uint64]uint32{label: count}}
		f.payloads[bcoord] = blockPayload(t, bcoord, count)
	}
	return f
}

func TestUniformSingleBlock(t *testing.T) {
	bcoord := dvid.ChunkPoint3d{1, 2, 3}
	f := newFakeFetcher(t, 99, map[dvid.ChunkPoint3d]uint32{bcoord: 100})

	points, err := Uniform(context.Background(), f, "uuid", "segmentation", 99, 0.1)
	if err != nil {
		t.Fatalf("Uniform: %v\n", err)
	}
	if len(points) != 10 {
		t.Fatalf("expected 10 points at density 0.1 of 100 voxels, got %d\n", len(points))
	}
	minPt, maxPt := bcoord.MinPoint(), bcoord.MaxPoint()
	seen := make(map[dvid.Point3d]struct{})
	for _, pt := range points {
		for dim := 0; dim < 3; dim++ {
			if pt[dim] < minPt[dim] || pt[dim] > maxPt[dim] {
				t.Errorf("point %s outside block %s\n", pt, bcoord)
			}
		}
		if _, dup := seen[pt]; dup {
			t.Errorf("duplicate point %s\n", pt)
		}
		seen[pt] = struct{}{}
	}
}

func TestUniformFullDensity(t *testing.T) {
	counts := map[dvid.ChunkPoint3d]uint32{
		{0, 0, 0}: 50,
		{1, 0, 0}: 30,
		{2, 0, 0}: 20,
	}
	f := newFakeFetcher(t, 7, counts)

	points, err := Uniform(context.Background(), f, "uuid", "segmentation", 7, 1.0)
	if err != nil {
		t.Fatalf("Uniform: %v\n", err)
	}
	if len(points) != 100 {
		t.Fatalf("expected all 100 voxels at density 1.0, got %d points\n", len(points))
	}
	perBlock := make(map[dvid.ChunkPoint3d]uint32)
	for _, pt := range points {
		perBlock[pt.Chunk()]++
	}
	for bcoord, count := range counts {
		if perBlock[bcoord] != count {
			t.Errorf("block %s: expected %d points, got %d\n", bcoord, count, perBlock[bcoord])
		}
	}
	if len(f.fetched) != 3 {
		t.Errorf("expected 3 block fetches, got %d\n", len(f.fetched))
	}
}

func TestUniformEmptyVolume(t *testing.T) {
	f := newFakeFetcher(t, 12, nil)

	points, err := Uniform(context.Background(), f, "uuid", "segmentation", 12, 0.5)
	if err != nil {
		t.Fatalf("empty volume must not error, got %v\n", err)
	}
	if len(points) != 0 {
		t.Errorf("expected empty point cloud, got %d points\n", len(points))
	}
	if len(f.fetched) != 0 {
		t.Errorf("no blocks should be fetched for an empty volume\n")
	}
}

func TestUniformFetchFailure(t *testing.T) {
	bcoord := dvid.ChunkPoint3d{0, 0, 0}
	f := newFakeFetcher(t, 5, map[dvid.ChunkPoint3d]uint32{bcoord: 100})
	f.failing[bcoord] = fmt.Errorf("connection refused")

	_, err := Uniform(context.Background(), f, "uuid", "segmentation", 5, 1.0)
	var fetchErr *BlockFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected BlockFetchError, got %v\n", err)
	}
	if fetchErr.Block != bcoord {
		t.Errorf("expected failing block %s, got %s\n", bcoord, fetchErr.Block)
	}
}

func TestLazyBlockFetch(t *testing.T) {
	counts := make(map[dvid.ChunkPoint3d]uint32)
	blocks := make([]labels.BlockCount, 10)
	for i := int32(0); i < 10; i++ {
		bcoord := dvid.ChunkPoint3d{i, 0, 0}
		counts[bcoord] = 100
		blocks[i] = labels.BlockCount{ZYX: labels.EncodeBlockIndex(i, 0, 0), Count: 100}
	}
	f := newFakeFetcher(t, 8, counts)

	// Ordinals 250 and 790 fall in the 3rd and 8th blocks only.
	points, err := resolveOrdinals(context.Background(), f, "uuid", "segmentation", 8, blocks, []uint64{250, 790})
	if err != nil {
		t.Fatalf("resolveOrdinals: %v\n", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d\n", len(points))
	}
	expected := []dvid.ChunkPoint3d{{2, 0, 0}, {7, 0, 0}}
	if len(f.fetched) != 2 || f.fetched[0] != expected[0] || f.fetched[1] != expected[1] {
		t.Errorf("expected fetches of exactly %v, got %v\n", expected, f.fetched)
	}
}

func TestShortBlockPayload(t *testing.T) {
	bcoord := dvid.ChunkPoint3d{0, 0, 0}
	f := newFakeFetcher(t, 3, map[dvid.ChunkPoint3d]uint32{bcoord: 100})
	// Payload resolves only 40 voxels although the index declares 100.
	f.payloads[bcoord] = blockPayload(t, bcoord, 40)

	_, err := Uniform(context.Background(), f, "uuid", "segmentation", 3, 1.0)
	var malformed *MalformedBlockDataError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedBlockDataError, got %v\n", err)
	}
}

func TestOverfullBlockPayload(t *testing.T) {
	bcoord := dvid.ChunkPoint3d{0, 0, 0}
	f := newFakeFetcher(t, 3, map[dvid.ChunkPoint3d]uint32{bcoord: 40})
	// Payload holds more voxels than the index declares.
	f.payloads[bcoord] = blockPayload(t, bcoord, 100)

	_, err := Uniform(context.Background(), f, "uuid", "segmentation", 3, 1.0)
	var malformed *MalformedBlockDataError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedBlockDataError, got %v\n", err)
	}
}

func TestUnknownMode(t *testing.T) {
	f := newFakeFetcher(t, 4, map[dvid.ChunkPoint3d]uint32{{0, 0, 0}: 10})
	if _, err := Sample(context.Background(), f, "uuid", "segmentation", 4, 0.5, Mode("surface")); err == nil {
		t.Errorf("expected error for unimplemented sampling mode\n")
	}
}

func TestInvalidDensity(t *testing.T) {
	f := newFakeFetcher(t, 4, map[dvid.ChunkPoint3d]uint32{{0, 0, 0}: 10})
	for _, density := range []float64{0, -1, 1.5} {
		if _, err := Uniform(context.Background(), f, "uuid", "segmentation", 4, density); !errors.Is(err, ErrInvalidDensity) {
			t.Errorf("density %g: expected ErrInvalidDensity, got %v\n", density, err)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	f := newFakeFetcher(t, 4, map[dvid.ChunkPoint3d]uint32{{0, 0, 0}: 100})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Uniform(ctx, f, "uuid", "segmentation", 4, 1.0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v\n", err)
	}
}
