// Package index keeps a bbolt database of every certificate EasyCA issued.
//
// The filesystem layout stays authoritative; the index only answers
// "what did this CA sign, and when" without re-parsing certs/.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/remiblancher/easyca/internal/caerr"
)

var bucketIssued = []byte("issued")

// Kind distinguishes what a certificate was issued as.
type Kind string

const (
	KindLeaf  Kind = "leaf"
	KindSubCA Kind = "sub-ca"
)

// Entry is one issued certificate.
type Entry struct {
	CA       string    `json:"ca"`
	Name     string    `json:"name"`
	Serial   string    `json:"serial"`
	Subject  string    `json:"subject"`
	Kind     Kind      `json:"kind"`
	NotAfter time.Time `json:"not_after"`
	IssuedAt time.Time `json:"issued_at"`
	Promoted bool      `json:"promoted,omitempty"`
}

// Index is a bbolt-backed issuance index.
type Index struct {
	db *bbolt.DB
}

// Open opens or creates the index database at path.
func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, caerr.New("open index", path, caerr.ErrStorage, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIssued)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, caerr.New("open index", path, caerr.ErrStorage, err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (x *Index) Close() error {
	return x.db.Close()
}

func key(ca, serial string) []byte {
	return []byte(ca + "\x00" + serial)
}

// Record stores e, replacing any entry with the same CA and serial.
func (x *Index) Record(e Entry) error {
	if e.CA == "" || e.Serial == "" {
		return fmt.Errorf("index entry needs a CA and a serial")
	}
	if e.IssuedAt.IsZero() {
		e.IssuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	err = x.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIssued).Put(key(e.CA, e.Serial), data)
	})
	if err != nil {
		return caerr.New("record issuance", e.Name, caerr.ErrStorage, err)
	}
	return nil
}

// Get returns the entry issued by ca with the given serial.
func (x *Index) Get(ca, serial string) (*Entry, error) {
	var e Entry
	err := x.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIssued).Get(key(ca, serial))
		if data == nil {
			return caerr.Newf("get issuance", ca+"/"+serial, caerr.ErrNotFound, "not in index")
		}
		return json.Unmarshal(data, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns the entries issued by ca, or by every CA when ca is empty,
// ordered by issuance time.
func (x *Index) List(ca string) ([]Entry, error) {
	var entries []Entry
	err := x.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketIssued).Cursor()
		var prefix []byte
		if ca != "" {
			prefix = []byte(ca + "\x00")
		}
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("corrupt index entry %q: %w", k, err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, caerr.New("list issuance", ca, caerr.ErrStorage, err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].IssuedAt.Before(entries[j].IssuedAt)
	})
	return entries, nil
}

// MarkPromoted flags the latest sub-CA entry named name as promoted into ca/.
func (x *Index) MarkPromoted(name string) error {
	err := x.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIssued)
		var (
			latestKey []byte
			latest    Entry
		)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("corrupt index entry %q: %w", k, err)
			}
			if e.Name != name || e.Kind != KindSubCA {
				continue
			}
			if latestKey == nil || e.IssuedAt.After(latest.IssuedAt) {
				latestKey = append([]byte(nil), k...)
				latest = e
			}
		}
		if latestKey == nil {
			return caerr.Newf("mark promoted", name, caerr.ErrNotFound, "no sub-CA issuance in index")
		}
		latest.Promoted = true
		data, err := json.Marshal(latest)
		if err != nil {
			return err
		}
		return b.Put(latestKey, data)
	})
	return err
}
