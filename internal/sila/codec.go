package sila

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding. Same logical data always
// produces identical bytes on the wire.
var encMode cbor.EncMode

// decMode accepts standard CBOR. Unknown fields are ignored so old
// bridges keep working against newer simulators.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sila: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Command parameters and results are any-typed on both ends.
		// The CBOR default for any-typed targets is
		// map[interface{}]interface{}, which encoding/json cannot
		// marshal. Force map[string]any instead; struct fields are
		// unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("sila: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
