package flowtree

import (
	"encoding/json"
	"testing"

	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/weavetest/assert"
)

func TestReadOptions(t *testing.T) {
	type conf struct {
		Cap int `json:"cap"`
	}

	cases := map[string]struct {
		json    string
		want    conf
		wantErr bool
	}{
		"happy path": {
			json: `{"flow": {"cap": 4}}`,
			want: conf{Cap: 4},
		},
		"missing key is not an error": {
			json: `{"other": {"cap": 4}}`,
			want: conf{},
		},
		"wrong value": {
			json:    `{"flow": {"cap": "four"}}`,
			wantErr: true,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			var o Options
			assert.Nil(t, json.Unmarshal([]byte(tc.json), &o))

			var got conf
			err := o.ReadOptions("flow", &got)
			if tc.wantErr != (err != nil) {
				t.Fatalf("unexpected error: %v", err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

type recordingInit struct {
	calls *[]string
	name  string
	err   error
}

func (r recordingInit) FromGenesis(Options, KVStore) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

func TestChainInitializers(t *testing.T) {
	var calls []string
	chain := ChainInitializers(
		recordingInit{calls: &calls, name: "a"},
		recordingInit{calls: &calls, name: "b", err: errors.ErrState},
		recordingInit{calls: &calls, name: "c"},
	)

	err := chain.FromGenesis(Options{}, nil)
	assert.IsErr(t, errors.ErrState, err)
	assert.Equal(t, []string{"a", "b"}, calls)
}
