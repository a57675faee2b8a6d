package dvid

import (
	"fmt"
)

const (
	// BlockSize is the span of a block along each axis in voxels.  DVID
	// chunks label volumes into cubes of this size.
	BlockSize = 64

	// BlockVoxels is the number of voxels within one block.
	BlockVoxels = BlockSize * BlockSize * BlockSize
)

// Point3d is a voxel coordinate in (x, y, z) order.
type Point3d [3]int32

func (pt Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", pt[0], pt[1], pt[2])
}

// Add returns the addition of two points.
func (pt Point3d) Add(pt2 Point3d) Point3d {
	return Point3d{pt[0] + pt2[0], pt[1] + pt2[1], pt[2] + pt2[2]}
}

// Chunk returns the block coordinate holding the given voxel coordinate.
func (pt Point3d) Chunk() ChunkPoint3d {
	return ChunkPoint3d{chunkCoord(pt[0]), chunkCoord(pt[1]), chunkCoord(pt[2])}
}

// ChunkPoint3d is a block coordinate in (x, y, z) order, i.e., the voxel
// coordinate divided by the block size along each axis.
type ChunkPoint3d [3]int32

func (c ChunkPoint3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c[0], c[1], c[2])
}

// MinPoint returns the first voxel coordinate within the block.
func (c ChunkPoint3d) MinPoint() Point3d {
	return Point3d{c[0] * BlockSize, c[1] * BlockSize, c[2] * BlockSize}
}

// MaxPoint returns the last voxel coordinate within the block.
func (c ChunkPoint3d) MaxPoint() Point3d {
	return Point3d{c[0]*BlockSize + BlockSize - 1, c[1]*BlockSize + BlockSize - 1, c[2]*BlockSize + BlockSize - 1}
}

// chunkCoord is floor division by the block size, correct for negative voxel
// coordinates unlike simple integer division.
func chunkCoord(v int32) int32 {
	if v < 0 {
		return (v - BlockSize + 1) / BlockSize
	}
	return v / BlockSize
}
