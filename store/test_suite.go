package store

import (
	"bytes"
	"math/rand"
	"sort"
	"testing"

	"github.com/iov-one/flowtree/errors"
	"github.com/iov-one/flowtree/weavetest/assert"
)

// TestSuite runs the same KVStore checks against any backend. Each backend
// package provides a StoreFactory and calls the suite methods from its own
// tests.
type TestSuite struct {
	open StoreFactory
}

// StoreFactory returns an empty store and a function releasing it.
type StoreFactory func() (base CacheableKVStore, cleanup func())

func NewTestSuite(open StoreFactory) *TestSuite {
	return &TestSuite{open: open}
}

// GetSet walks a store through writes, cache writes, discards and deletes,
// checking visibility at every layer.
func (s *TestSuite) GetSet(t *testing.T) {
	base, cleanup := s.open()
	defer cleanup()

	node, root := []byte("node:01"), []byte("root")
	s.AssertGetHas(t, base, node, nil, false)
	assert.Nil(t, base.Set(node, root))
	s.AssertGetHas(t, base, node, root, true)

	cache := base.CacheWrap()
	s.AssertGetHas(t, cache, node, root, true)

	recipient, alice := []byte("recipient:01"), []byte("alice")
	assert.Nil(t, cache.Set(recipient, alice))
	s.AssertGetHas(t, cache, recipient, alice, true)
	s.AssertGetHas(t, base, recipient, nil, false)

	assert.Nil(t, cache.Write())
	s.AssertGetHas(t, base, node, root, true)
	s.AssertGetHas(t, base, recipient, alice, true)

	discarded := base.CacheWrap()
	pending := []byte("pending:01")
	assert.Nil(t, discarded.Set(pending, []byte{1}))
	discarded.Discard()
	s.AssertGetHas(t, base, pending, nil, false)

	removal := base.CacheWrap()
	assert.Nil(t, removal.Delete(node))
	s.AssertGetHas(t, removal, node, nil, false)
	s.AssertGetHas(t, base, node, root, true)
	assert.Nil(t, removal.Write())

	s.AssertGetHas(t, base, node, nil, false)
	s.AssertGetHas(t, base, recipient, alice, true)
	s.AssertGetHas(t, base, pending, nil, false)
}

// CacheConflicts checks that a child layer can overwrite and delete values
// of its parent without the parent noticing until the child is written.
func (s *TestSuite) CacheConflicts(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	keys := genBytes(r, 6, 16)
	vals := genBytes(r, 6, 32)

	cases := map[string]struct {
		parent     []Op
		child      []Op
		wantParent []Model
		wantChild  []Model
	}{
		"overwrite, delete and insert": {
			parent:     []Op{SetOp(keys[0], vals[0]), SetOp(keys[1], vals[1])},
			child:      []Op{SetOp(keys[0], vals[2]), DelOp(keys[1]), SetOp(keys[2], vals[3])},
			wantParent: []Model{Pair(keys[0], vals[0]), Pair(keys[1], vals[1]), Pair(keys[2], nil)},
			wantChild:  []Model{Pair(keys[0], vals[2]), Pair(keys[1], nil), Pair(keys[2], vals[3])},
		},
		"delete then set again": {
			parent:     []Op{SetOp(keys[3], vals[4])},
			child:      []Op{DelOp(keys[3]), SetOp(keys[3], vals[5])},
			wantParent: []Model{Pair(keys[3], vals[4])},
			wantChild:  []Model{Pair(keys[3], vals[5])},
		},
		"delete a missing key": {
			child:      []Op{DelOp(keys[4])},
			wantParent: []Model{Pair(keys[4], nil)},
			wantChild:  []Model{Pair(keys[4], nil)},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			parent, cleanup := s.open()
			defer cleanup()

			apply(t, parent, tc.parent)
			child := parent.CacheWrap()
			apply(t, child, tc.child)

			s.assertModels(t, parent, tc.wantParent)
			s.assertModels(t, child, tc.wantChild)

			assert.Nil(t, child.Write())
			s.assertModels(t, parent, tc.wantChild)
		})
	}
}

// FuzzIterator compares range iteration over random content with the
// expected sorted slices, in both directions.
func (s *TestSuite) FuzzIterator(t *testing.T) {
	const size = 50
	r := rand.New(rand.NewSource(42))

	childSet := genModels(r, size, 8, 40)
	childOps := append(setOps(childSet...), delOps(genModels(r, 20, 8, 40)...)...)
	parentSet := genModels(r, size, 8, 40)
	parentOps := append(setOps(parentSet...), delOps(genModels(r, 20, 8, 40)...)...)

	cases := map[string]layered{
		"child over an empty parent": {
			child:  childOps,
			ranges: rangesOver(sortedModels(childSet)),
		},
		"child over a filled parent": {
			parent: parentOps,
			child:  childOps,
			ranges: rangesOver(sortedModels(append(childSet, parentSet...))),
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			base, cleanup := s.open()
			defer cleanup()
			tc.check(t, base)
		})
	}
}

// rangesOver builds open, half open and closed ranges in both directions
// over models, which must be sorted and hold at least 40 entries.
func rangesOver(models []Model) []span {
	n := len(models)
	return []span{
		{want: models},
		{start: models[10].Key, want: models[10:]},
		{end: models[n-8].Key, want: models[:n-8]},
		{start: models[17].Key, end: models[28].Key, want: models[17:28]},
		{reverse: true, want: reversed(models)},
		{reverse: true, start: models[34].Key, want: reversed(models[34:])},
		{reverse: true, end: models[19].Key, want: reversed(models[:19])},
		{reverse: true, start: models[6].Key, end: models[26].Key, want: reversed(models[6:26])},
	}
}

// IteratorWithConflicts iterates over a parent and a child layer holding
// the same keys.
func (s *TestSuite) IteratorWithConflicts(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	ms := genModels(r, 6, 20, 100)
	a, a2, b, b2, c, d := ms[0], ms[1], ms[2], ms[3], ms[4], ms[5]
	a2.Key = a.Key
	b2.Key = b.Key

	abc := sortedModels([]Model{a, b, c})
	replaced := sortedModels([]Model{a2, b2, c, d})

	cases := map[string]layered{
		"child only": {
			child: setOps(a, b, c),
			ranges: []span{
				{want: abc},
				{start: abc[1].Key, end: abc[2].Key, want: abc[1:2]},
				{reverse: true, want: reversed(abc)},
			},
		},
		"parent only": {
			parent: setOps(a, b, c),
			ranges: []span{
				{want: abc},
				{start: abc[1].Key, end: abc[2].Key, want: abc[1:2]},
				{reverse: true, want: reversed(abc)},
			},
		},
		"disjoint layers": {
			parent: setOps(a, b),
			child:  setOps(c),
			ranges: []span{
				{want: abc},
				{reverse: true, want: reversed(abc)},
			},
		},
		"child values shadow the parent": {
			parent: setOps(a, b, c),
			child:  setOps(a2, b2, d),
			ranges: []span{
				{want: replaced},
				{start: replaced[1].Key, end: replaced[3].Key, want: replaced[1:3]},
				{reverse: true, want: reversed(replaced)},
			},
		},
		"child deletes hide the parent": {
			parent: setOps(a, c, d),
			child:  delOps(a, b, d),
			ranges: []span{
				{want: []Model{c}},
				{end: c.Key, want: nil},
				{reverse: true, want: []Model{c}},
			},
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			base, cleanup := s.open()
			defer cleanup()
			tc.check(t, base)
		})
	}
}

// NestedCacheWrap ensures that a cache wrap created on top of another cache
// wrap only propagates its changes one level up when written.
func (s *TestSuite) NestedCacheWrap(t *testing.T) {
	base, cleanup := s.open()
	defer cleanup()

	k1, k2 := []byte("node:1"), []byte("node:2")
	assert.Nil(t, base.Set(k1, []byte("one")))

	outer := base.CacheWrap()
	inner := outer.CacheWrap()
	assert.Nil(t, inner.Set(k2, []byte("two")))
	assert.Nil(t, inner.Delete(k1))

	s.AssertGetHas(t, outer, k2, nil, false)
	assert.Nil(t, inner.Write())
	s.AssertGetHas(t, outer, k1, nil, false)
	s.AssertGetHas(t, outer, k2, []byte("two"), true)
	s.AssertGetHas(t, base, k1, []byte("one"), true)

	outer.Discard()
	s.AssertGetHas(t, base, k1, []byte("one"), true)
	s.AssertGetHas(t, base, k2, nil, false)
}

// AssertGetHas checks that both Get and Has agree with the expectation.
func (s *TestSuite) AssertGetHas(t testing.TB, kv ReadOnlyKVStore, key, val []byte, has bool) {
	t.Helper()
	got, err := kv.Get(key)
	assert.Nil(t, err)
	assert.Equal(t, val, got)
	exists, err := kv.Has(key)
	assert.Nil(t, err)
	assert.Equal(t, has, exists)
}

// assertModels expects each key to hold its value, a nil value means the
// key is absent.
func (s *TestSuite) assertModels(t testing.TB, kv ReadOnlyKVStore, want []Model) {
	t.Helper()
	for _, m := range want {
		s.AssertGetHas(t, kv, m.Key, m.Value, m.Value != nil)
	}
}

// layered applies operations to a base store and to a cache wrap over it,
// then iterates the cache wrap.
type layered struct {
	parent []Op
	child  []Op
	ranges []span
}

type span struct {
	start, end []byte
	reverse    bool
	want       []Model
}

func (l layered) check(t testing.TB, base CacheableKVStore) {
	t.Helper()
	apply(t, base, l.parent)
	child := base.CacheWrap()
	apply(t, child, l.child)

	for _, sp := range l.ranges {
		open := child.Iterator
		if sp.reverse {
			open = child.ReverseIterator
		}
		it, err := open(sp.start, sp.end)
		assert.Nil(t, err)
		for i, m := range sp.want {
			key, value, err := it.Next()
			assert.Nil(t, err)
			if !bytes.Equal(m.Key, key) {
				t.Fatalf("item %d: want key %X, got %X", i, m.Key, key)
			}
			assert.Equal(t, m.Value, value)
		}
		if _, _, err := it.Next(); !errors.ErrIteratorDone.Is(err) {
			t.Fatalf("want iterator to be done, got %+v", err)
		}
		it.Release()
	}
}

func apply(t testing.TB, kv SetDeleter, ops []Op) {
	t.Helper()
	for _, op := range ops {
		assert.Nil(t, op.Apply(kv))
	}
}

func genBytes(r *rand.Rand, count, size int) [][]byte {
	res := make([][]byte, count)
	for i := range res {
		res[i] = make([]byte, size)
		r.Read(res[i])
	}
	return res
}

func genModels(r *rand.Rand, count, keySize, valueSize int) []Model {
	keys := genBytes(r, count, keySize)
	values := genBytes(r, count, valueSize)
	res := make([]Model, count)
	for i := range res {
		res[i] = Pair(keys[i], values[i])
	}
	return res
}

func sortedModels(models []Model) []Model {
	res := append([]Model(nil), models...)
	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].Key, res[j].Key) < 0
	})
	return res
}

func reversed(models []Model) []Model {
	res := make([]Model, len(models))
	for i, m := range models {
		res[len(models)-1-i] = m
	}
	return res
}

func setOps(ms ...Model) []Op {
	res := make([]Op, len(ms))
	for i, m := range ms {
		res[i] = SetOp(m.Key, m.Value)
	}
	return res
}

func delOps(ms ...Model) []Op {
	res := make([]Op, len(ms))
	for i, m := range ms {
		res[i] = DelOp(m.Key)
	}
	return res
}
