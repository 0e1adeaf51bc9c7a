package superframe

import (
	"context"

	"github.com/sleipnir-radio/sleipnir/internal/bus"
)

// ReassemblyTimeout is the default number of superframes a fragment set may
// sit incomplete before it is discarded (spec §7).
const ReassemblyTimeout = 8

// fragmentSet tracks the fragments collected so far for one seq_id.
type fragmentSet struct {
	total    int
	have     int
	parts    [][]byte
	deadline uint32 // superframe counter at which this set expires
}

// Reassembler reconstructs fragmented text/APRS messages from individual
// 36-byte fragment bodies, discarding any set that does not complete within
// ReassemblyTimeout superframes. Grounded on the teacher's TimerManager
// (pkg/bridge/timer.go) per-key deadline bookkeeping, adapted from
// wall-clock durations to superframe-counter deadlines, since this
// waveform's clock is the superframe tick rather than wall time.
type Reassembler struct {
	timeout uint32
	sets    map[byte]*fragmentSet
}

// NewReassembler constructs a Reassembler with the given timeout in
// superframes. A timeout of 0 uses ReassemblyTimeout.
func NewReassembler(timeout uint32) *Reassembler {
	if timeout == 0 {
		timeout = ReassemblyTimeout
	}
	return &Reassembler{timeout: timeout, sets: make(map[byte]*fragmentSet)}
}

// Accept feeds one fragment's 3-byte header plus body (spec §4.5) in at
// the given superframe counter. It returns the reassembled message and true
// once the final fragment of its set arrives.
func (r *Reassembler) Accept(counter uint32, fragment []byte) ([]byte, bool) {
	if len(fragment) < 3 {
		return nil, false
	}
	seqID, idx, count := fragment[0], int(fragment[1]), int(fragment[2])
	if count <= 0 || idx < 0 || idx >= count {
		return nil, false
	}

	set, ok := r.sets[seqID]
	if !ok {
		set = &fragmentSet{total: count, parts: make([][]byte, count), deadline: counter + r.timeout}
		r.sets[seqID] = set
	}
	if set.parts[idx] == nil {
		set.parts[idx] = append([]byte(nil), fragment[3:]...)
		set.have++
	}
	if set.have < set.total {
		return nil, false
	}

	delete(r.sets, seqID)
	var out []byte
	for _, p := range set.parts {
		out = append(out, p...)
	}
	return out, true
}

// Expire discards any fragment set whose deadline has passed as of counter,
// emitting a status event for each one onto statusOut. Callers invoke this
// once per processed superframe.
func (r *Reassembler) Expire(counter uint32, statusOut *bus.Queue[bus.StatusEvent]) {
	for seqID, set := range r.sets {
		if counter < set.deadline {
			continue
		}
		delete(r.sets, seqID)
		if statusOut != nil {
			statusOut.Push(context.Background(), bus.StatusEvent{
				Counter: counter,
				Kind:    bus.StatusFrameCorrupt,
			})
		}
	}
}
