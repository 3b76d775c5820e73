package utils

import (
	"context"
	"testing"

	"github.com/iov-one/flowtree"
	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/store"
	"github.com/iov-one/flowtree/weavetest"
	"github.com/stretchr/testify/require"
)

func TestSavepoint(t *testing.T) {
	// always write ok, ov before calling functions
	ok, ov := []byte("demo"), []byte("data")
	// some key, value to try to write
	nk, nv := []byte{1, 2, 3}, []byte{4, 5, 6}

	cases := map[string]struct {
		save    flowtree.Decorator
		handler flowtree.Handler
		check   bool
		wantErr *errors.Error
		written [][]byte
		missing [][]byte
	}{
		"savepoint disabled, returns error, both written": {
			save:    NewSavepoint(),
			handler: weavetest.WriteHandler{Key: nk, Value: nv, Err: errors.ErrState},
			check:   true,
			wantErr: errors.ErrState,
			written: [][]byte{ok, nk},
		},
		"savepoint on check, returns error, one written": {
			save:    NewSavepoint().OnCheck(),
			handler: weavetest.WriteHandler{Key: nk, Value: nv, Err: errors.ErrState},
			check:   true,
			wantErr: errors.ErrState,
			written: [][]byte{ok},
			missing: [][]byte{nk},
		},
		"savepoint on deliver, returns error, one written": {
			save:    NewSavepoint().OnDeliver(),
			handler: weavetest.WriteHandler{Key: nk, Value: nv, Err: errors.ErrState},
			wantErr: errors.ErrState,
			written: [][]byte{ok},
			missing: [][]byte{nk},
		},
		"double activation maintains both behaviors": {
			save:    NewSavepoint().OnDeliver().OnCheck(),
			handler: weavetest.WriteHandler{Key: nk, Value: nv, Err: errors.ErrState},
			wantErr: errors.ErrState,
			written: [][]byte{ok},
			missing: [][]byte{nk},
		},
		"savepoint on check does not affect deliver": {
			save:    NewSavepoint().OnCheck(),
			handler: weavetest.WriteHandler{Key: nk, Value: nv, Err: errors.ErrState},
			wantErr: errors.ErrState,
			written: [][]byte{ok, nk},
		},
		"success writes everything": {
			save:    NewSavepoint().OnDeliver(),
			handler: weavetest.WriteHandler{Key: nk, Value: nv},
			written: [][]byte{ok, nk},
		},
		"panic is converted and rolled back": {
			save:    NewSavepoint().OnDeliver(),
			handler: weavetest.PanicHandler{Msg: "boom"},
			wantErr: errors.ErrPanic,
			written: [][]byte{ok},
			missing: [][]byte{nk},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			ctx := context.Background()
			kv := store.MemStore()
			require.NoError(t, kv.Set(ok, ov))

			var err error
			if tc.check {
				_, err = tc.save.Check(ctx, kv, nil, tc.handler)
			} else {
				_, err = tc.save.Deliver(ctx, kv, nil, tc.handler)
			}
			require.True(t, tc.wantErr.Is(err), "unexpected error: %v", err)

			for _, k := range tc.written {
				has, err := kv.Has(k)
				require.NoError(t, err)
				require.True(t, has, "missing %X", k)
			}
			for _, k := range tc.missing {
				has, err := kv.Has(k)
				require.NoError(t, err)
				require.False(t, has, "unexpected %X", k)
			}
		})
	}
}

func TestInSavepointNested(t *testing.T) {
	kv := store.MemStore()

	err := InSavepoint(kv, func(outer flowtree.KVStore) error {
		require.NoError(t, outer.Set([]byte("outer"), []byte("1")))

		inner := InSavepoint(outer, func(db flowtree.KVStore) error {
			require.NoError(t, db.Set([]byte("inner"), []byte("1")))
			return errors.ErrInsufficientAmount
		})
		require.True(t, errors.ErrInsufficientAmount.Is(inner))
		return nil
	})
	require.NoError(t, err)

	has, err := kv.Has([]byte("outer"))
	require.NoError(t, err)
	require.True(t, has)
	has, err = kv.Has([]byte("inner"))
	require.NoError(t, err)
	require.False(t, has)
}
