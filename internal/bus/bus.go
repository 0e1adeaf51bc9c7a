package bus

// OpusFrame is the element type for audio_in/audio_out (spec §4.7): an
// opaque 40-byte Opus frame plus routing metadata.
type OpusFrame struct {
	Data     [40]byte
	Callsign string
	Counter  uint32
	Position uint8
}

// Message is the element type for text_in/aprs_in (pre-reassembly) and
// text_out/aprs_out (post-reassembly, spec §4.7).
type Message struct {
	Data     []byte
	Callsign string
	Counter  uint32
	Position uint8
}

// ControlDirective is the element type for ctrl (spec §4.7): a config
// directive such as a PTT transition or policy change.
type ControlDirective struct {
	Kind    string
	Payload any
}

// KeyEvent is the element type for keys (spec §4.7): key-material change
// notifications (signing key rotation, MAC key rotation, and so on).
type KeyEvent struct {
	Kind string
	Data []byte
}

// StatusEvent is the element type for status_out (spec §4.6): the
// per-frame outcome the parser reports downstream.
type StatusEvent struct {
	Callsign         string
	Counter          uint32
	Position         uint8
	Kind             string
	MacValid         bool
	SignatureValid   bool
	DecoderConverged bool
	DecoderType      string
	SyndromeResidual int
}

// Status event kinds (spec §4.6).
const (
	StatusFrameOK       = "frame_ok"
	StatusMacInvalid    = "mac_invalid"
	StatusFrameCorrupt  = "frame_corrupt"
	StatusSyncAcquired  = "sync_acquired"
	StatusSyncLost      = "sync_lost"
	StatusSignatureBad  = "signature_invalid"
)

// Bus wires together the nine typed queues defined in spec §4.7, each
// with its specified bound and overflow policy.
type Bus struct {
	AudioIn *Queue[OpusFrame]
	TextIn  *Queue[Message]
	AprsIn  *Queue[Message]
	Ctrl    *Queue[ControlDirective]
	Keys    *Queue[KeyEvent]

	AudioOut  *Queue[OpusFrame]
	TextOut   *Queue[Message]
	AprsOut   *Queue[Message]
	StatusOut *Queue[StatusEvent]
}

// New constructs a Bus with the queue bounds and overflow policies from
// spec §4.7's table.
func New() *Bus {
	return &Bus{
		AudioIn: NewQueue[OpusFrame](24, OverflowBlock),
		TextIn:  NewQueue[Message](64, OverflowDropOldest),
		AprsIn:  NewQueue[Message](64, OverflowDropOldest),
		Ctrl:    NewQueue[ControlDirective](16, OverflowBlock),
		Keys:    NewQueue[KeyEvent](4, OverflowReplace),

		AudioOut:  NewQueue[OpusFrame](24, OverflowDropOldest),
		TextOut:   NewQueue[Message](64, OverflowDropOldest),
		AprsOut:   NewQueue[Message](64, OverflowDropOldest),
		StatusOut: NewQueue[StatusEvent](128, OverflowDropOldest),
	}
}
