package sample

import (
	"errors"
	"fmt"

	"github.com/jakobtroidl/dvid-point-cloud/dvid"
)

// ErrInvalidDensity is returned when the requested sampling density is
// outside (0, 1].
var ErrInvalidDensity = errors.New("sampling density must be in (0, 1]")

// BlockFetchError wraps a failure to retrieve the sparse volume payload of a
// block the sample needs.  The whole sample is aborted rather than returning
// a silently short point cloud.
type BlockFetchError struct {
	Block dvid.ChunkPoint3d
	Err   error
}

func (e *BlockFetchError) Error() string {
	return fmt.Sprintf("fetching block %s: %v", e.Block, e.Err)
}

func (e *BlockFetchError) Unwrap() error {
	return e.Err
}

// MalformedBlockDataError wraps RLE or index data inconsistent with the
// voxel counts the label index declared for a block.
type MalformedBlockDataError struct {
	Block dvid.ChunkPoint3d
	Err   error
}

func (e *MalformedBlockDataError) Error() string {
	return fmt.Sprintf("malformed data for block %s: %v", e.Block, e.Err)
}

func (e *MalformedBlockDataError) Unwrap() error {
	return e.Err
}
