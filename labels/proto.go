/*
	This file serializes and deserializes the LabelIndex protobuf message
	served by DVID's /index/<label> endpoint.  The message layout is:

		message SVCount {
			map<uint64, uint32> counts = 1;
			uint64 surface_mutid = 2;
		}

		message LabelIndex {
			map<uint64, SVCount> blocks = 1;  // key is packed block coordinate
			uint64 last_mutid = 2;
			string last_mod_time = 3;
			string last_mod_user = 4;
			uint64 label = 5;
			string last_mod_app = 6;
		}
*/

package labels

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// LabelIndex field numbers.
const (
	fieldBlocks      = 1
	fieldLastMutid   = 2
	fieldLastModTime = 3
	fieldLastModUser = 4
	fieldLabel       = 5
	fieldLastModApp  = 6
)

// SVCount field numbers.
const (
	fieldCounts       = 1
	fieldSurfaceMutid = 2
)

// Map entries are encoded as nested messages with key = 1, value = 2.
const (
	fieldMapKey   = 1
	fieldMapValue = 2
)

// UnmarshalIndex deserializes a protobuf-encoded LabelIndex.
func UnmarshalIndex(b []byte) (*Index, error) {
	idx := &Index{Blocks: make(map[uint64]*SVCount)}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bad LabelIndex tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldBlocks && typ == protowire.BytesType:
			entry, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("bad LabelIndex blocks entry: %v", protowire.ParseError(n))
			}
			b = b[n:]
			zyx, svc, err := unmarshalBlockEntry(entry)
			if err != nil {
				return nil, err
			}
			idx.Blocks[zyx] = svc
		case num == fieldLastMutid && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("bad LabelIndex last_mutid: %v", protowire.ParseError(n))
			}
			b = b[n:]
			idx.LastMutId = v
		case num == fieldLabel && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("bad LabelIndex label: %v", protowire.ParseError(n))
			}
			b = b[n:]
			idx.Label = v
		case num == fieldLastModTime && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("bad LabelIndex last_mod_time: %v", protowire.ParseError(n))
			}
			b = b[n:]
			idx.LastModTime = v
		case num == fieldLastModUser && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("bad LabelIndex last_mod_user: %v", protowire.ParseError(n))
			}
			b = b[n:]
			idx.LastModUser = v
		case num == fieldLastModApp && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("bad LabelIndex last_mod_app: %v", protowire.ParseError(n))
			}
			b = b[n:]
			idx.LastModApp = v
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("bad LabelIndex field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return idx, nil
}

func unmarshalBlockEntry(b []byte) (zyx uint64, svc *SVCount, err error) {
	svc = &SVCount{Counts: make(map[uint64]uint32)}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, nil, fmt.Errorf("bad blocks entry tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldMapKey && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, nil, fmt.Errorf("bad blocks entry key: %v", protowire.ParseError(n))
			}
			b = b[n:]
			zyx = v
		case num == fieldMapValue && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, nil, fmt.Errorf("bad blocks entry value: %v", protowire.ParseError(n))
			}
			b = b[n:]
			if err := unmarshalSVCount(msg, svc); err != nil {
				return 0, nil, err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, nil, fmt.Errorf("bad blocks entry field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return zyx, svc, nil
}

func unmarshalSVCount(b []byte, svc *SVCount) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("bad SVCount tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldCounts && typ == protowire.BytesType:
			entry, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("bad SVCount counts entry: %v", protowire.ParseError(n))
			}
			b = b[n:]
			supervoxel, count, err := unmarshalCountEntry(entry)
			if err != nil {
				return err
			}
			svc.Counts[supervoxel] = count
		case num == fieldSurfaceMutid && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("bad SVCount surface_mutid: %v", protowire.ParseError(n))
			}
			b = b[n:]
			svc.SurfaceMutid = v
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("bad SVCount field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func unmarshalCountEntry(b []byte) (supervoxel uint64, count uint32, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, 0, fmt.Errorf("bad counts entry tag: %v", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldMapKey && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, 0, fmt.Errorf("bad counts entry key: %v", protowire.ParseError(n))
			}
			b = b[n:]
			supervoxel = v
		case num == fieldMapValue && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, 0, fmt.Errorf("bad counts entry value: %v", protowire.ParseError(n))
			}
			b = b[n:]
			count = uint32(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, 0, fmt.Errorf("bad counts entry field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return supervoxel, count, nil
}

// MarshalIndex serializes an Index into the LabelIndex protobuf encoding.
func MarshalIndex(idx *Index) ([]byte, error) {
	if idx == nil {
		return nil, fmt.Errorf("can't marshal nil Index")
	}
	var b []byte
	for zyx, svc := range idx.Blocks {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldMapKey, protowire.VarintType)
		entry = protowire.AppendVarint(entry, zyx)
		entry = protowire.AppendTag(entry, fieldMapValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, marshalSVCount(svc))
		b = protowire.AppendTag(b, fieldBlocks, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	if idx.LastMutId != 0 {
		b = protowire.AppendTag(b, fieldLastMutid, protowire.VarintType)
		b = protowire.AppendVarint(b, idx.LastMutId)
	}
	if idx.LastModTime != "" {
		b = protowire.AppendTag(b, fieldLastModTime, protowire.BytesType)
		b = protowire.AppendString(b, idx.LastModTime)
	}
	if idx.LastModUser != "" {
		b = protowire.AppendTag(b, fieldLastModUser, protowire.BytesType)
		b = protowire.AppendString(b, idx.LastModUser)
	}
	if idx.Label != 0 {
		b = protowire.AppendTag(b, fieldLabel, protowire.VarintType)
		b = protowire.AppendVarint(b, idx.Label)
	}
	if idx.LastModApp != "" {
		b = protowire.AppendTag(b, fieldLastModApp, protowire.BytesType)
		b = protowire.AppendString(b, idx.LastModApp)
	}
	return b, nil
}

func marshalSVCount(svc *SVCount) []byte {
	var b []byte
	if svc == nil {
		return b
	}
	for supervoxel, count := range svc.Counts {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldMapKey, protowire.VarintType)
		entry = protowire.AppendVarint(entry, supervoxel)
		entry = protowire.AppendTag(entry, fieldMapValue, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(count))
		b = protowire.AppendTag(b, fieldCounts, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	if svc.SurfaceMutid != 0 {
		b = protowire.AppendTag(b, fieldSurfaceMutid, protowire.VarintType)
		b = protowire.AppendVarint(b, svc.SurfaceMutid)
	}
	return b
}
