// Package bech32 encodes addresses in the human readable bech32 form, with
// a prefix naming the network.
package bech32

import (
	"github.com/btcsuite/btcutil/bech32"
	"github.com/iov-one/flowtree/errors"
)

// Encode returns the bech32 form of payload under prefix hrp.
func Encode(hrp string, payload []byte) ([]byte, error) {
	groups, err := regroup(payload, 8, 5, true)
	if err != nil {
		return nil, err
	}
	enc, err := bech32.Encode(hrp, groups)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "bech32 encode: %s", err)
	}
	return []byte(enc), nil
}

// Decode returns the prefix and the payload of a bech32 string. The
// checksum is verified.
func Decode(enc string) (hrp string, payload []byte, err error) {
	hrp, groups, err := bech32.Decode(enc)
	if err != nil {
		return "", nil, errors.Wrapf(errors.ErrInput, "bech32 decode: %s", err)
	}
	payload, err = regroup(groups, 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, payload, nil
}

func regroup(data []byte, from, to uint8, pad bool) ([]byte, error) {
	out, err := bech32.ConvertBits(data, from, to, pad)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "convert %d to %d bit groups: %s", from, to, err)
	}
	return out, nil
}
