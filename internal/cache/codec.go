package cache

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// codec encodes cache values as CBOR. Decimals go through their binary
// marshalers; times keep nanoseconds and zone offsets.
type codec struct {
	em cbor.EncMode
	dm cbor.DecMode
}

func newCodec() (*codec, error) {
	em, err := cbor.EncOptions{
		Sort: cbor.SortCoreDeterministic, // stable bytes for fingerprinting
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR encoder: %w", err)
	}

	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 32,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("create CBOR decoder: %w", err)
	}

	return &codec{em: em, dm: dm}, nil
}

func (c *codec) marshal(v any) ([]byte, error) {
	return c.em.Marshal(v)
}

func (c *codec) unmarshal(data []byte, v any) error {
	return c.dm.Unmarshal(data, v)
}
