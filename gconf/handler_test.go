package gconf

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/store"
	"github.com/iov-one/flowtree/weavetest"
	"github.com/iov-one/flowtree/weavetest/assert"
)

func TestUpdateConfigurationHandler(t *testing.T) {
	owner := weavetest.NewCondition()
	stored := &myconfig{Owner: owner.Address(), Num: 10, Str: "drain"}

	cases := map[string]struct {
		init    ValidMarshaler
		msg     flowtree.Msg
		signers []flowtree.Condition
		wantErr *errors.Error
		want    *myconfig
	}{
		"owner patches every field": {
			init:    stored,
			msg:     &myconfigMsg{Patch: &myconfig{Owner: owner.Address(), Num: 3, Str: "cap"}},
			signers: []flowtree.Condition{owner},
			want:    &myconfig{Owner: owner.Address(), Num: 3, Str: "cap"},
		},
		"zero fields keep the stored value": {
			init:    stored,
			msg:     &myconfigMsg{Patch: &myconfig{Str: "cap"}},
			signers: []flowtree.Condition{owner},
			want:    &myconfig{Owner: owner.Address(), Num: 10, Str: "cap"},
		},
		"owner must sign": {
			init:    stored,
			msg:     &myconfigMsg{Patch: &myconfig{Num: 3}},
			signers: []flowtree.Condition{weavetest.NewCondition()},
			wantErr: errors.ErrUnauthorized,
		},
		"no owner, no updates": {
			init:    &myconfig{Num: 10},
			msg:     &myconfigMsg{Patch: &myconfig{Num: 3}},
			signers: []flowtree.Condition{owner},
			wantErr: errors.ErrUnauthorized,
		},
		"invalid patch": {
			init:    stored,
			msg:     &myconfigMsg{Patch: &myconfig{Num: -1}},
			signers: []flowtree.Condition{owner},
			wantErr: errors.ErrInput,
		},
		"configuration must exist": {
			msg:     &myconfigMsg{Patch: &myconfig{Num: 1}},
			signers: []flowtree.Condition{owner},
			wantErr: errors.ErrNotFound,
		},
		"message without a patch": {
			init:    stored,
			msg:     &myconfigMsg{},
			signers: []flowtree.Condition{owner},
			wantErr: errors.ErrState,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			db := store.MemStore()
			if tc.init != nil {
				assert.Nil(t, Save(db, "mypkg", tc.init))
			}

			var c myconfig
			auth := &weavetest.CtxAuth{Key: "auth"}
			handler := NewUpdateConfigurationHandler("mypkg", &c, auth)
			ctx := auth.SetConditions(context.Background(), tc.signers...)
			tx := &weavetest.Tx{Msg: tc.msg}

			cache := db.CacheWrap()
			_, err := handler.Check(ctx, cache, tx)
			cache.Discard()
			if !tc.wantErr.Is(err) {
				t.Fatalf("check: want %v, got %+v", tc.wantErr, err)
			}
			if _, err := handler.Deliver(ctx, db, tx); !tc.wantErr.Is(err) {
				t.Fatalf("deliver: want %v, got %+v", tc.wantErr, err)
			}

			if tc.want != nil {
				var got myconfig
				assert.Nil(t, Load(db, "mypkg", &got))
				assert.Equal(t, tc.want, &got)
			}
		})
	}
}

type myconfig struct {
	Owner flowtree.Address
	Num   int64
	Str   string
}

func (c *myconfig) GetOwner() flowtree.Address { return c.Owner }
func (c *myconfig) Marshal() ([]byte, error)   { return json.Marshal(c) }
func (c *myconfig) Unmarshal(raw []byte) error { return json.Unmarshal(raw, c) }

func (c *myconfig) Validate() error {
	if len(c.Owner) != 0 {
		if err := c.Owner.Validate(); err != nil {
			return errors.Wrap(err, "owner")
		}
	}
	if c.Num < 0 {
		return errors.Wrap(errors.ErrInput, "num must not be negative")
	}
	return nil
}

type myconfigMsg struct {
	Patch *myconfig
}

var _ flowtree.Msg = (*myconfigMsg)(nil)

func (msg *myconfigMsg) Marshal() ([]byte, error)   { return json.Marshal(msg) }
func (msg *myconfigMsg) Unmarshal(raw []byte) error { return json.Unmarshal(raw, msg) }
func (msg *myconfigMsg) Path() string               { return "myconfig" }

func (msg *myconfigMsg) Validate() error {
	if msg.Patch == nil {
		return nil
	}
	return msg.Patch.Validate()
}
