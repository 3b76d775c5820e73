package flowtree_test

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressPrinting(t *testing.T) {
	Convey("test hexademical address printing", t, func() {
		b := []byte("ABCD123456LHB")
		addr := flowtree.Address(b)

		So(addr.String(), ShouldEqual, fmt.Sprintf("%X", []byte(addr)))
	})

	Convey("test condition printing", t, func() {
		cond := flowtree.NewCondition("flow", "node", []byte{0, 0, 0, 7})

		So(cond.String(), ShouldEqual, "flow/node/00000007")
		So(cond.String(), ShouldNotEqual, fmt.Sprintf("%X", []byte(cond)))
	})

	Convey("nil address printing", t, func() {
		var addr flowtree.Address
		So(addr.String(), ShouldEqual, "(nil)")
	})
}

func TestAddressUnmarshalJSON(t *testing.T) {
	addr := flowtree.NewCondition("foo", "bar", []byte("conditiondata")).Address()
	addrHex := hex.EncodeToString(addr)
	addrBech, err := addr.Bech32()
	require.NoError(t, err)

	cases := map[string]struct {
		json     string
		wantErr  *errors.Error
		wantAddr flowtree.Address
	}{
		"default decoding": {
			json:     `"` + addrHex + `"`,
			wantAddr: addr,
		},
		"hex decoding": {
			json:     `"hex:` + addrHex + `"`,
			wantAddr: addr,
		},
		"bech32 decoding": {
			json:     `"bech32:` + addrBech + `"`,
			wantAddr: addr,
		},
		"cond decoding": {
			json:     `"cond:foo/bar/636f6e646974696f6e64617461"`,
			wantAddr: addr,
		},
		"hex address too short": {
			json:    `"6865782d61646472"`,
			wantErr: errors.ErrInput,
		},
		"invalid condition format": {
			json:    `"cond:foo/636f6e646974696f6e64617461"`,
			wantErr: errors.ErrInput,
		},
		"invalid condition data": {
			json:    `"cond:foo/bar/zzzzz"`,
			wantErr: errors.ErrInput,
		},
		"unknown format": {
			json:    `"foobar:xxx"`,
			wantErr: errors.ErrType,
		},
		"zero address": {
			json:     `""`,
			wantAddr: nil,
		},
		"zero hex address": {
			json:     `"hex:"`,
			wantAddr: nil,
		},
		"zero cond address": {
			json:     `"cond:"`,
			wantAddr: nil,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var a flowtree.Address
			err := json.Unmarshal([]byte(tc.json), &a)
			if !tc.wantErr.Is(err) {
				t.Fatalf("got error: %+v", err)
			}
			if err == nil && !reflect.DeepEqual(a, tc.wantAddr) {
				t.Fatalf("got address: %q", a)
			}
		})
	}
}

func TestConditionUnmarshalJSON(t *testing.T) {
	cases := map[string]struct {
		json          string
		wantErr       *errors.Error
		wantCondition flowtree.Condition
	}{
		"default decoding": {
			json:          `"foo/bar/636f6e646974696f6e64617461"`,
			wantCondition: flowtree.NewCondition("foo", "bar", []byte("conditiondata")),
		},
		"invalid condition format": {
			json:    `"foo/636f6e646974696f6e64617461"`,
			wantErr: errors.ErrInput,
		},
		"invalid condition data": {
			json:    `"foo/bar/zzzzz"`,
			wantErr: errors.ErrInput,
		},
		"zero address": {
			json:          `""`,
			wantCondition: nil,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var got flowtree.Condition
			err := json.Unmarshal([]byte(tc.json), &got)
			if !tc.wantErr.Is(err) {
				t.Fatalf("got error: %+v", err)
			}
			if err == nil && !got.Equals(tc.wantCondition) {
				t.Fatalf("expected %q condition, got %q", tc.wantCondition, got)
			}
		})
	}
}

func TestConditionMarshalRoundTrip(t *testing.T) {
	cond := flowtree.NewCondition("flow", "node", []byte{1, 2, 3})
	raw, err := json.Marshal(cond)
	require.NoError(t, err)
	assert.Equal(t, `"flow/node/010203"`, string(raw))

	var back flowtree.Condition
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, cond.Equals(back))
}

func TestConditionValidate(t *testing.T) {
	cases := map[string]struct {
		cond    flowtree.Condition
		wantErr *errors.Error
	}{
		"valid":           {cond: flowtree.NewCondition("flow", "node", []byte{1}), wantErr: nil},
		"short ext":       {cond: flowtree.NewCondition("x", "node", []byte{1}), wantErr: errors.ErrInput},
		"missing data":    {cond: flowtree.Condition("flow/node/"), wantErr: errors.ErrInput},
		"no separators":   {cond: flowtree.Condition("flownode"), wantErr: errors.ErrInput},
		"newline in data": {cond: flowtree.NewCondition("flow", "node", []byte("a\nb")), wantErr: nil},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			if err := tc.cond.Validate(); !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
		})
	}
}

func TestAddressSet(t *testing.T) {
	a := flowtree.NewCondition("flow", "node", []byte{1}).Address()
	b := flowtree.NewCondition("flow", "node", []byte{2}).Address()

	var set flowtree.AddressSet
	assert.True(t, set.Add(a))
	assert.True(t, set.Add(b))
	assert.False(t, set.Add(a))
	assert.True(t, set.Has(b))
	assert.Equal(t, []flowtree.Address{a, b}, set.List())
}
