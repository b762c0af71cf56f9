package rangemap

import (
	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/utils/uuid"
)

// Trigger is a key that receives a fresh random token whenever a
// range map that shares it is written. Watchers compare tokens to
// learn that something changed without re-reading every map.
//
// The token is written without reading the key first, so two
// writers that only touch the trigger never conflict with each other.
type Trigger struct {
	key []byte
}

// NewTrigger creates a trigger stored at key. Key is absolute, not
// relative to the prefix of any range map.
func NewTrigger(key []byte) Trigger {
	return Trigger{key: key}
}

// Key returns the key of the trigger
func (trigger Trigger) Key() []byte {
	return trigger.key
}

// Update writes a fresh token. It does nothing for the zero Trigger.
func (trigger Trigger) Update(txn kv.Transaction) error {
	if len(trigger.key) == 0 {
		return nil
	}

	return txn.Put(trigger.key, []byte(uuid.MustUUID()))
}

// Token returns the current token or nil if the trigger was never
// updated
func (trigger Trigger) Token(txn kv.Transaction) ([]byte, error) {
	if len(trigger.key) == 0 {
		return nil, nil
	}

	return txn.Get(trigger.key)
}
