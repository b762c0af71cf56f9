package kv

// NewSliceIterator returns an iterator over kvs. Drivers
// that materialize a range read up front use it to satisfy
// Keys.
func NewSliceIterator(kvs []KV) Iterator {
	return &sliceIterator{kvs: kvs, i: -1}
}

type sliceIterator struct {
	kvs []KV
	i   int
}

func (iter *sliceIterator) Next() bool {
	if iter.i < len(iter.kvs) {
		iter.i++
	}

	return iter.i < len(iter.kvs)
}

func (iter *sliceIterator) Key() []byte {
	if iter.i < 0 || iter.i >= len(iter.kvs) {
		return nil
	}

	return iter.kvs[iter.i].Key()
}

func (iter *sliceIterator) Value() []byte {
	if iter.i < 0 || iter.i >= len(iter.kvs) {
		return nil
	}

	return iter.kvs[iter.i].Value()
}

func (iter *sliceIterator) Error() error {
	return nil
}
