package kv

import (
	"github.com/jrife/rangeconf/storage/kv/keys"
)

// Namespace ensures that all keys referenced within a transaction
// are prefixed with ns. Keys returned by iterators have the prefix
// stripped.
func Namespace(txn Transaction, ns []byte) Transaction {
	if len(ns) == 0 {
		return txn
	}

	return &namespacedTxn{txn: txn, ns: ns}
}

type namespacedTxn struct {
	txn Transaction
	ns  []byte
}

func (nsTxn *namespacedTxn) key(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	return keys.All().Namespace(nsTxn.ns).Eq(key).Min, nil
}

func (nsTxn *namespacedTxn) Put(key, value []byte) error {
	k, err := nsTxn.key(key)

	if err != nil {
		return err
	}

	return nsTxn.txn.Put(k, value)
}

func (nsTxn *namespacedTxn) Get(key []byte) ([]byte, error) {
	k, err := nsTxn.key(key)

	if err != nil {
		return nil, err
	}

	return nsTxn.txn.Get(k)
}

func (nsTxn *namespacedTxn) Delete(key []byte) error {
	k, err := nsTxn.key(key)

	if err != nil {
		return err
	}

	return nsTxn.txn.Delete(k)
}

func (nsTxn *namespacedTxn) DeleteRange(keys keys.Range) error {
	return nsTxn.txn.DeleteRange(keys.Namespace(nsTxn.ns))
}

func (nsTxn *namespacedTxn) Keys(keys keys.Range, order SortOrder) (Iterator, error) {
	if order != SortOrderAsc && order != SortOrderDesc {
		order = SortOrderAsc
	}

	iterator, err := nsTxn.txn.Keys(keys.Namespace(nsTxn.ns), order)

	if err != nil {
		return nil, err
	}

	return &namespacedIterator{iterator: iterator, ns: nsTxn.ns}, nil
}

func (nsTxn *namespacedTxn) Last(keys keys.Range) (KV, bool, error) {
	pair, ok, err := nsTxn.txn.Last(keys.Namespace(nsTxn.ns))

	if err != nil || !ok {
		return KV{}, false, err
	}

	return KV{pair.Key()[len(nsTxn.ns):], pair.Value()}, true, nil
}

func (nsTxn *namespacedTxn) Commit() error {
	return nsTxn.txn.Commit()
}

func (nsTxn *namespacedTxn) Rollback() error {
	return nsTxn.txn.Rollback()
}

type namespacedIterator struct {
	iterator Iterator
	key      []byte
	ns       []byte
}

func (nsCursor *namespacedIterator) Next() bool {
	if !nsCursor.iterator.Next() {
		nsCursor.key = nil

		return false
	}

	// strip the namespace prefix
	nsCursor.key = nsCursor.iterator.Key()[len(nsCursor.ns):]

	return true
}

func (nsCursor *namespacedIterator) Key() []byte {
	return nsCursor.key
}

func (nsCursor *namespacedIterator) Value() []byte {
	return nsCursor.iterator.Value()
}

func (nsCursor *namespacedIterator) Error() error {
	return nsCursor.iterator.Error()
}
