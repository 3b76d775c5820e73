package store

import (
	"bytes"

	"github.com/google/btree"
	"github.com/iov-one/flowtree/errors"
)

// btreeIter is a copy of the cached entries within a range, ordered in
// the direction of iteration. Copying lets the cache change while an
// iterator is open.
type btreeIter struct {
	items []entry
	idx   int
}

// snapshot collects the entries in [start, end). A nil bound is open.
func snapshot(tree *btree.BTree, start, end []byte, reverse bool) *btreeIter {
	iter := &btreeIter{}
	collect := func(item btree.Item) bool {
		iter.items = append(iter.items, item.(entry))
		return true
	}
	switch {
	case start == nil && end == nil:
		tree.Ascend(collect)
	case start == nil:
		tree.AscendLessThan(entry{key: end}, collect)
	case end == nil:
		tree.AscendGreaterOrEqual(entry{key: start}, collect)
	default:
		tree.AscendRange(entry{key: start}, entry{key: end}, collect)
	}
	if reverse {
		for i, j := 0, len(iter.items)-1; i < j; i, j = i+1, j-1 {
			iter.items[i], iter.items[j] = iter.items[j], iter.items[i]
		}
	}
	return iter
}

func (b *btreeIter) valid() bool {
	return b.idx < len(b.items)
}

func (b *btreeIter) next() {
	b.idx++
}

// get requires valid() to hold.
func (b *btreeIter) get() entry {
	return b.items[b.idx]
}

// source marks where the current item comes from
type source int32

const (
	us source = iota
	parent
	both
	none
)

// itemIter joins our results with those of the parent,
// taking into consideration overwrites and deletes.
type itemIter struct {
	wrap    *btreeIter
	reverse bool

	// if we are iterating in a cache-wrap (and who isn't),
	// we need to combine this iterator with the parent
	parent      Iterator
	parentKey   []byte
	parentValue []byte
	parentValid bool
}

var _ Iterator = (*itemIter)(nil)

func newItemIter(wrap *btreeIter, parent Iterator, reverse bool) (*itemIter, error) {
	iter := &itemIter{
		wrap:    wrap,
		parent:  parent,
		reverse: reverse,
	}
	if err := iter.advanceParent(); err != nil {
		iter.Release()
		return nil, err
	}
	return iter, nil
}

// Next returns the next key value pair, skipping over anything that was
// deleted in this cache.
func (i *itemIter) Next() (key, value []byte, err error) {
	for {
		src := i.firstKey()
		switch src {
		case none:
			return nil, nil, errors.ErrIteratorDone
		case parent:
			key, value = i.parentKey, i.parentValue
			if err := i.advanceParent(); err != nil {
				return nil, nil, err
			}
			return key, value, nil
		}

		item := i.wrap.get()
		i.wrap.next()
		// our value shadows the parent one
		if src == both {
			if err := i.advanceParent(); err != nil {
				return nil, nil, err
			}
		}
		if item.deleted {
			continue
		}
		return item.key, item.value, nil
	}
}

// Release releases the Iterator.
func (i *itemIter) Release() {
	if i.parent != nil {
		i.parent.Release()
	}
	i.wrap.items = nil
}

func (i *itemIter) advanceParent() error {
	if i.parent == nil {
		i.parentValid = false
		return nil
	}
	key, value, err := i.parent.Next()
	if errors.ErrIteratorDone.Is(err) {
		i.parentKey, i.parentValue, i.parentValid = nil, nil, false
		return nil
	}
	if err != nil {
		return err
	}
	i.parentKey, i.parentValue, i.parentValid = key, value, true
	return nil
}

// firstKey selects the iterator with the lowest key is any
// (highest when iterating in reverse)
func (i *itemIter) firstKey() source {
	// if only one or none is valid, it is clear which to use
	if !i.parentValid {
		if !i.wrap.valid() {
			return none
		}
		return us
	} else if !i.wrap.valid() {
		return parent
	}

	cmp := bytes.Compare(i.parentKey, i.wrap.get().key)
	if i.reverse {
		cmp = -cmp
	}
	switch {
	case cmp < 0:
		return parent
	case cmp > 0:
		return us
	default:
		return both
	}
}
