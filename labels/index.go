package labels

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jakobtroidl/dvid-point-cloud/dvid"
)

// ErrEmptyVolume signals that a label index holds no voxels, either because
// the label doesn't exist or all its blocks have zero counts.
var ErrEmptyVolume = errors.New("label has no voxels")

// SVCount holds the voxel count of each constituent supervoxel within one block.
type SVCount struct {
	Counts       map[uint64]uint32
	SurfaceMutid uint64
}

// Index is the deserialized label index for one body: for each block the body
// touches, the voxel count each of its supervoxels contributes.
type Index struct {
	Blocks      map[uint64]*SVCount
	LastMutId   uint64
	LastModTime string
	LastModUser string
	Label       uint64
	LastModApp  string
}

// EncodeBlockIndex converts signed (x,y,z) block coordinate into
// a single uint64, which is packed in ZYX order with MSB empty,
// the most-significant 21 bits is Z (21st bit is sign flag), next
// 21 bits is Y, then least-significant 21 bits is X.
func EncodeBlockIndex(x, y, z int32) (zyx uint64) {
	if z < 0 {
		zyx |= 0x00100000
		z = -z
	}
	zyx |= uint64(z & 0x000FFFFF)
	zyx <<= 21
	if y < 0 {
		zyx |= 0x00100000
		y = -y
	}
	zyx |= uint64(y & 0x000FFFFF)
	zyx <<= 21
	if x < 0 {
		zyx |= 0x00100000
		x = -x
	}
	zyx |= uint64(x & 0x000FFFFF)
	return
}

// DecodeBlockIndex decodes a packed block index into int32 coordinates.
// At most, each block int32 coordinate can be 20 bits.
func DecodeBlockIndex(zyx uint64) (x, y, z int32) {
	x = int32(zyx & 0x00000000000FFFFF)
	if zyx&0x0000000000100000 != 0 {
		x = -x
	}
	zyx >>= 21
	y = int32(zyx & 0x00000000000FFFFF)
	if zyx&0x0000000000100000 != 0 {
		y = -y
	}
	zyx >>= 21
	z = int32(zyx & 0x00000000000FFFFF)
	if zyx&0x0000000000100000 != 0 {
		z = -z
	}
	return
}

// BlockIndexToChunkPoint3d decodes a packed block index into a block coordinate.
func BlockIndexToChunkPoint3d(zyx uint64) dvid.ChunkPoint3d {
	x, y, z := DecodeBlockIndex(zyx)
	return dvid.ChunkPoint3d{x, y, z}
}

// NumVoxels returns the number of voxels for the Index.
func (idx *Index) NumVoxels() uint64 {
	if idx == nil || len(idx.Blocks) == 0 {
		return 0
	}
	var numVoxels uint64
	for _, svc := range idx.Blocks {
		if svc != nil && svc.Counts != nil {
			for _, sz := range svc.Counts {
				numVoxels += uint64(sz)
			}
		}
	}
	return numVoxels
}

// GetSupervoxelCounts returns the # of voxels for each supervoxel in an Index.
// Note that the counts are uint64 because although each block might only hold
// a # of voxels < max uint32, a massive supervoxel could hold many more.
func (idx *Index) GetSupervoxelCounts() (counts map[uint64]uint64) {
	counts = make(map[uint64]uint64)
	if idx == nil || len(idx.Blocks) == 0 {
		return
	}
	for _, svc := range idx.Blocks {
		if svc != nil && svc.Counts != nil {
			for supervoxel, sz := range svc.Counts {
				counts[supervoxel] += uint64(sz)
			}
		}
	}
	return
}

// BlockCount is the total label voxel count within one block, keyed by the
// packed block coordinate.
type BlockCount struct {
	ZYX   uint64
	Count uint32
}

// BlockCounts sums the supervoxel counts of each block and returns the
// per-block totals sorted by packed block coordinate ascending, skipping
// blocks with zero voxels.  Returns ErrEmptyVolume if no voxels remain.
func (idx *Index) BlockCounts() ([]BlockCount, error) {
	if idx == nil || len(idx.Blocks) == 0 {
		return nil, ErrEmptyVolume
	}
	blocks := make([]BlockCount, 0, len(idx.Blocks))
	for zyx, svc := range idx.Blocks {
		if svc == nil || svc.Counts == nil {
			continue
		}
		var count uint64
		for _, sz := range svc.Counts {
			count += uint64(sz)
		}
		if count == 0 {
			continue
		}
		if count > uint64(dvid.BlockVoxels) {
			return nil, fmt.Errorf("block %s claims %d voxels, more than fit in a %d-voxel block",
				BlockIndexToChunkPoint3d(zyx), count, dvid.BlockVoxels)
		}
		blocks = append(blocks, BlockCount{ZYX: zyx, Count: uint32(count)})
	}
	if len(blocks) == 0 {
		return nil, ErrEmptyVolume
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ZYX < blocks[j].ZYX })
	return blocks, nil
}
