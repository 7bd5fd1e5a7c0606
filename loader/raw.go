package loader

import (
	"os"

	"tlog.app/go/errors"
)

// LoadRaw reads a flat code image to be placed at base. The entry point is
// base and the whole image is one readable, writable and executable
// segment.
func LoadRaw(path string, base uint64) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read raw image")
	}

	if len(data) == 0 {
		return nil, errors.New("empty raw image")
	}

	return &Program{
		EntryPoint: base,
		InitialSP:  DefaultStackTop,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     data,
			MemSize:  uint64(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}},
	}, nil
}
