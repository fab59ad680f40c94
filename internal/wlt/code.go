package wlt

// Code is the low-two-bit workload classification exported by the
// platform's workload_type_index node.
type Code int32

const (
	Idle    Code = 0
	Btl     Code = 1
	Sustain Code = 2
	Bursty  Code = 3
)

func (c Code) String() string {
	switch c {
	case Idle:
		return "idle"
	case Btl:
		return "bottleneck"
	case Sustain:
		return "sustain"
	case Bursty:
		return "bursty"
	default:
		return "unknown"
	}
}

// Classify extracts the low two bits of the raw workload_type_index value.
// Higher bits are preserved by the caller for "swlt" mode and are not part
// of this classification.
func Classify(raw int32) Code {
	return Code(raw & 0x3)
}

// Active reports whether a classification represents an active workload
// (Sustain or Bursty), the condition that arms the coordinator's GPU
// idle-residency monitor.
func Active(c Code) bool {
	return c == Sustain || c == Bursty
}
