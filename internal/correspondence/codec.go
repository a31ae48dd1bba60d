package correspondence

import "github.com/usepat/SW-soniccontrol/internal/schema"

// Codec translates calls and answers to and from a protocol's wire format.
// Implementations live with the transport.
//
// Encode receives the resolved command definition so it can place index and
// setter parameters and pick each field's wire format. Decode must return
// answers built with BuildAnswer, applying each field's prefix and postfix
// while parsing.
type Codec interface {
	Encode(call CommandCall, def schema.CommandDef) ([]byte, error)
	Decode(data []byte) (Answer, error)
}
