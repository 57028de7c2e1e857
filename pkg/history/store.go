// Package history persists a summary of every closed cycle so cadence can be
// inspected after the fact.
package history

import (
	"bytes"

	"github.com/dgraph-io/badger/v4"
)

type Store struct {
	db *badger.DB
}

func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(recs ...Record) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, r := range recs {
		if err := wb.Set(r.key(), r.marshal()); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func decode(item *badger.Item) (Record, error) {
	channel, at, err := parseKey(item.Key())
	if err != nil {
		return Record{}, err
	}
	r := Record{Channel: channel, ReceivedAt: at}
	err = item.Value(func(v []byte) error {
		return r.unmarshal(v)
	})
	return r, err
}

// Recent returns up to n records for channel, newest first.
func (s *Store) Recent(channel string, n int) ([]Record, error) {
	prefix := channelPrefix(channel)
	var out []Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(bytes.Clone(prefix), bytes.Repeat([]byte{0xFF}, 9)...)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < n; it.Next() {
			r, err := decode(it.Item())
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// ForEach visits every record ordered by channel, then receipt time.
func (s *Store) ForEach(fn func(r Record) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			r, err := decode(it.Item())
			if err != nil {
				return err
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	})
}

// Channels lists the distinct channels present in the store.
func (s *Store) Channels() ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); {
			channel, _, err := parseKey(it.Item().Key())
			if err != nil {
				return err
			}
			out = append(out, channel)
			// Skip past every key of this channel.
			it.Seek(append(channelPrefix(channel), bytes.Repeat([]byte{0xFF}, 9)...))
		}
		return nil
	})
	return out, err
}
