package bech32

import (
	"testing"

	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/weavetest/assert"
)

func TestBech32EncodeDecode(t *testing.T) {
	// bech32 -e -h tiov 746573742d7061796c6f6164
	const enc = `tiov1w3jhxapdwpshjmr0v9jqymqq4y`

	hrp, payload, err := Decode(enc)
	assert.Nil(t, err)
	assert.Equal(t, "tiov", hrp)
	assert.Equal(t, []byte("test-payload"), payload)

	raw, err := Encode(hrp, payload)
	assert.Nil(t, err)
	assert.Equal(t, enc, string(raw))
}

func TestBech32DecodeInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no separator":   "tiovw3jhxapdwpshjmr0v9jqymqq4y",
		"wrong checksum": "tiov1w3jhxapdwpshjmr0v9jqymqq4z",
	}
	for testName, enc := range cases {
		t.Run(testName, func(t *testing.T) {
			_, _, err := Decode(enc)
			assert.IsErr(t, errors.ErrInput, err)
		})
	}
}
