/*
	This file supports the binary RLE encoding used for sparse volumes.
*/

package dvid

import (
	"encoding/binary"
	"fmt"
)

// Sparse volume binary encoding payload descriptors.
const (
	// EncodingBinary denotes no payload bytes since binary sparse volume is
	// defined by just start and run length.
	EncodingBinary byte = 0x00

	// EncodingGrayscale8 denotes an 8-bit grayscale payload.
	EncodingGrayscale8 = 0x01

	// EncodingGrayscale16 denotes a 16-bit grayscale payload.
	EncodingGrayscale16 = 0x02

	// EncodingNormal16 denotes 16-bit encoded normals.
	EncodingNormal16 = 0x04
)

// rleBytes is the serialized size of one run: int32 x, y, z, length.
const rleBytes = 16

// sparseVolHeaderBytes is the fixed-size header preceding the runs.
const sparseVolHeaderBytes = 12

// RLE is a single run-length encoded span with a start coordinate and length
// along a coordinate (typically X).
type RLE struct {
	start  Point3d
	length int32
}

func NewRLE(start Point3d, length int32) RLE {
	return RLE{start, length}
}

// StartPt returns the first voxel coordinate of the run.
func (rle RLE) StartPt() Point3d {
	return rle.start
}

// Length returns the number of voxels in the run.
func (rle RLE) Length() int32 {
	return rle.length
}

func (rle RLE) String() string {
	return fmt.Sprintf("RLE %s, length %d", rle.start, rle.length)
}

// RLEs are simply a slice of RLE.
type RLEs []RLE

// MarshalBinary fulfills the encoding.BinaryMarshaler interface.
func (rles RLEs) MarshalBinary() ([]byte, error) {
	b := make([]byte, len(rles)*rleBytes)
	off := 0
	for _, rle := range rles {
		binary.LittleEndian.PutUint32(b[off:], uint32(rle.start[0]))
		binary.LittleEndian.PutUint32(b[off+4:], uint32(rle.start[1]))
		binary.LittleEndian.PutUint32(b[off+8:], uint32(rle.start[2]))
		binary.LittleEndian.PutUint32(b[off+12:], uint32(rle.length))
		off += rleBytes
	}
	return b, nil
}

// UnmarshalBinary fulfills the encoding.BinaryUnmarshaler interface.
func (rles *RLEs) UnmarshalBinary(b []byte) error {
	lenEncoding := len(b)
	if lenEncoding%rleBytes != 0 {
		return fmt.Errorf("RLE encoding # bytes is not divisible by %d: %d", rleBytes, len(b))
	}
	numRLEs := lenEncoding / rleBytes
	*rles = make(RLEs, numRLEs)
	off := 0
	for i := 0; i < numRLEs; i++ {
		(*rles)[i].start[0] = int32(binary.LittleEndian.Uint32(b[off:]))
		(*rles)[i].start[1] = int32(binary.LittleEndian.Uint32(b[off+4:]))
		(*rles)[i].start[2] = int32(binary.LittleEndian.Uint32(b[off+8:]))
		(*rles)[i].length = int32(binary.LittleEndian.Uint32(b[off+12:]))
		off += rleBytes
	}
	return nil
}

// Stats returns the total number of voxels and runs.
func (rles RLEs) Stats() (numVoxels, numRuns int32) {
	if len(rles) == 0 {
		return 0, 0
	}
	for _, rle := range rles {
		numVoxels += rle.length
	}
	return numVoxels, int32(len(rles))
}

// SparseVolHeader is the fixed-size prefix of a serialized sparse volume.
// The encoding has the following format where integers are little endian:
//
//	byte     Payload descriptor
//	uint8    Number of dimensions
//	uint8    Dimension of run (typically 0 = X)
//	byte     Reserved (to be used later)
//	uint32   # Voxels (may be 0 placeholder)
//	uint32   # Spans
//	Repeating unit of:
//	    int32   Coordinate of run start (dimension 0)
//	    int32   Coordinate of run start (dimension 1)
//	    int32   Coordinate of run start (dimension 2)
//	    int32   Length of run
//	    bytes   Optional payload dependent on first byte descriptor
type SparseVolHeader struct {
	Payload   byte
	NumDims   uint8
	RunDim    uint8
	NumVoxels uint32
	NumSpans  uint32
}

// ParseSparseVolHeader reads the header of an encoded sparse volume and
// returns the remaining bytes holding the runs.
func ParseSparseVolHeader(b []byte) (header SparseVolHeader, runs []byte, err error) {
	if len(b) < sparseVolHeaderBytes {
		err = fmt.Errorf("sparse volume encoding is only %d bytes, shorter than %d-byte header", len(b), sparseVolHeaderBytes)
		return
	}
	header.Payload = b[0]
	header.NumDims = b[1]
	header.RunDim = b[2]
	header.NumVoxels = binary.LittleEndian.Uint32(b[4:8])
	header.NumSpans = binary.LittleEndian.Uint32(b[8:12])
	if header.NumDims != 3 {
		err = fmt.Errorf("sparse volume encoding must have 3 dimensions, got %d", header.NumDims)
		return
	}
	if header.RunDim != 0 {
		err = fmt.Errorf("sparse volume runs must be along X (dimension 0), got dimension %d", header.RunDim)
		return
	}
	if header.Payload != EncodingBinary {
		err = fmt.Errorf("unsupported sparse volume payload descriptor 0x%02x", header.Payload)
		return
	}
	return header, b[sparseVolHeaderBytes:], nil
}

// EncodeSparseVol serializes runs into the headered sparse volume encoding,
// filling in the voxel and span counts.
func EncodeSparseVol(rles RLEs) ([]byte, error) {
	numVoxels, numRuns := rles.Stats()
	b := make([]byte, sparseVolHeaderBytes, sparseVolHeaderBytes+len(rles)*rleBytes)
	b[0] = EncodingBinary
	b[1] = 3 // # of dimensions
	b[2] = 0 // dimension of run (X = 0)
	b[3] = 0 // reserved for later
	binary.LittleEndian.PutUint32(b[4:8], uint32(numVoxels))
	binary.LittleEndian.PutUint32(b[8:12], uint32(numRuns))
	serialized, err := rles.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(b, serialized...), nil
}

// RLEScanner iterates through the runs of one encoded sparse volume, allowing
// consumers to stop decoding once they've seen the runs they need.  Rescanning
// the same encoding requires a new scanner.
type RLEScanner struct {
	header SparseVolHeader
	runs   []byte
	read   uint32
	rle    RLE
	err    error
}

// NewRLEScanner checks the sparse volume header and returns a scanner
// positioned before the first run.
func NewRLEScanner(encoding []byte) (*RLEScanner, error) {
	header, runs, err := ParseSparseVolHeader(encoding)
	if err != nil {
		return nil, err
	}
	return &RLEScanner{header: header, runs: runs}, nil
}

// Header returns the parsed sparse volume header.
func (s *RLEScanner) Header() SparseVolHeader {
	return s.header
}

// Scan advances to the next run, returning false when the declared number of
// spans has been read or the encoding is exhausted or malformed.
func (s *RLEScanner) Scan() bool {
	if s.err != nil || s.read >= s.header.NumSpans {
		return false
	}
	if len(s.runs) < rleBytes {
		s.err = fmt.Errorf("sparse volume encoding truncated: %d spans declared but bytes remain for only %d", s.header.NumSpans, s.read)
		return false
	}
	s.rle.start[0] = int32(binary.LittleEndian.Uint32(s.runs))
	s.rle.start[1] = int32(binary.LittleEndian.Uint32(s.runs[4:]))
	s.rle.start[2] = int32(binary.LittleEndian.Uint32(s.runs[8:]))
	s.rle.length = int32(binary.LittleEndian.Uint32(s.runs[12:]))
	if s.rle.length <= 0 {
		s.err = fmt.Errorf("sparse volume run %d at %s has non-positive length %d", s.read, s.rle.start, s.rle.length)
		return false
	}
	s.runs = s.runs[rleBytes:]
	s.read++
	return true
}

// RLE returns the run read by the last successful Scan.
func (s *RLEScanner) RLE() RLE {
	return s.rle
}

// Err returns the first error encountered while scanning.
func (s *RLEScanner) Err() error {
	return s.err
}
