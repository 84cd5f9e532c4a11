package exits

// FrameInfo is the per-frame record of the exit-locations report. All
// counters start at zero when a frame is first sighted; downstream
// consumers fill them in while aggregating.
type FrameInfo struct {
	Name         string            `msgpack:"name"`
	File         string            `msgpack:"file"`
	Line         *int32            `msgpack:"line,omitempty"`
	Samples      uint64            `msgpack:"samples"`
	TotalSamples uint64            `msgpack:"total_samples"`
	Edges        map[FrameID]uint64 `msgpack:"edges"`
	Lines        map[int32]uint64  `msgpack:"lines"`
}

// Report is the exit-locations export: the raw encoded sample stream, the
// parallel line stream, and one record per distinct frame identity.
type Report struct {
	Raw    []uint64              `msgpack:"raw"`
	Lines  []int32               `msgpack:"lines"`
	Frames map[FrameID]*FrameInfo `msgpack:"frames"`
}

// Dict parses the recorder's raw and line streams into a Report, resolving
// frame display information through src. Each distinct frame identity
// appears in Frames exactly once however often it recurs across samples.
func (r *Recorder) Dict(src FrameSource) *Report {
	raw, lines := r.Samples()
	report := &Report{
		Raw:    make([]uint64, 0, len(raw)),
		Lines:  make([]int32, 0, len(lines)),
		Frames: make(map[FrameID]*FrameInfo),
	}

	idx := 0
	for idx < len(raw) {
		num := int(raw[idx])
		report.Raw = append(report.Raw, raw[idx])
		report.Lines = append(report.Lines, lines[idx])
		idx++

		for o := 0; o < num; o++ {
			addFrame(report.Frames, FrameID(raw[idx]), src)
			report.Raw = append(report.Raw, raw[idx])
			report.Lines = append(report.Lines, lines[idx])
			idx++
		}

		// exit instruction tag, then the sample count
		report.Raw = append(report.Raw, raw[idx])
		report.Lines = append(report.Lines, lines[idx])
		idx++
		report.Raw = append(report.Raw, raw[idx])
		report.Lines = append(report.Lines, lines[idx])
		idx++
	}
	return report
}

func addFrame(frames map[FrameID]*FrameInfo, f FrameID, src FrameSource) {
	if _, ok := frames[f]; ok {
		return
	}
	info := &FrameInfo{
		Name:   src.FullLabel(f),
		File:   src.Path(f),
		Edges:  make(map[FrameID]uint64),
		Lines:  make(map[int32]uint64),
	}
	if line := src.FirstLine(f); line != 0 {
		info.Line = &line
	}
	frames[f] = info
}
