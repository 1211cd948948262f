package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules"
)

var (
	bucketBlockExact  = []byte("block_exact")
	bucketBlockSuffix = []byte("block_suffix")
	bucketAllowExact  = []byte("allow_exact")
	bucketAllowSuffix = []byte("allow_suffix")
	bucketMeta        = []byte("meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")

	ruleBuckets = [][]byte{bucketBlockExact, bucketBlockSuffix, bucketAllowExact, bucketAllowSuffix}
)

// ErrCorruptValue is returned when a stored rule value cannot be decoded.
var ErrCorruptValue = errors.New("corrupt rule value")

// boltStore implements rules.Store using bbolt.
//
// Layout: exact rules are keyed by canonical host, suffix rules by the
// reversed host so anchors share prefixes. Values hold the ingestion time
// (8 bytes, unix nanoseconds, big endian) followed by the source identifier.
type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
// The parent directory is created when missing.
func New(path string) (rules.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBlockExact, bucketBlockSuffix, bucketAllowExact, bucketAllowSuffix, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// bucketsFor returns the exact and suffix buckets holding rules with action.
func bucketsFor(action domain.RuleAction) (exact, suffix []byte) {
	if action == domain.ActionAllow {
		return bucketAllowExact, bucketAllowSuffix
	}
	return bucketBlockExact, bucketBlockSuffix
}

// GetFirstMatch returns the most specific rule with the given action that
// matches name: an exact rule first, then suffix anchors from the full name
// down to the last label.
func (s *boltStore) GetFirstMatch(name string, action domain.RuleAction) (domain.HostRule, bool, error) {
	var (
		out   domain.HostRule
		found bool
	)
	exactName, suffixName := bucketsFor(action)
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(exactName); b != nil {
			if v := b.Get([]byte(name)); v != nil {
				r, err := decodeRule(name, domain.HostRuleExact, action, v)
				if err != nil {
					return err
				}
				out, found = r, true
				return nil
			}
		}
		b := tx.Bucket(suffixName)
		if b == nil {
			return nil
		}
		anchor := name
		for anchor != "" {
			if v := b.Get([]byte(reverse(anchor))); v != nil {
				r, err := decodeRule(anchor, domain.HostRuleSuffix, action, v)
				if err != nil {
					return err
				}
				out, found = r, true
				return nil
			}
			i := strings.IndexByte(anchor, '.')
			if i < 0 {
				break
			}
			anchor = anchor[i+1:]
		}
		return nil
	})
	if err != nil {
		return domain.HostRule{}, false, err
	}
	return out, found, nil
}

// RebuildAll replaces every rule bucket and the metadata in one transaction.
// Rules with unsupported kinds or empty names are skipped.
func (s *boltStore) RebuildAll(rs []domain.HostRule, version uint64, updatedUnix int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := resetBuckets(tx); err != nil {
			return err
		}
		for _, r := range rs {
			if r.Name == "" {
				continue
			}
			exactName, suffixName := bucketsFor(r.Action)
			var (
				bucket []byte
				key    string
			)
			switch r.Kind {
			case domain.HostRuleExact:
				bucket, key = exactName, r.Name
			case domain.HostRuleSuffix:
				bucket, key = suffixName, reverse(r.Name)
			default:
				continue
			}
			if err := tx.Bucket(bucket).Put([]byte(key), encodeRule(r)); err != nil {
				return err
			}
		}
		return putMeta(tx, version, updatedUnix)
	})
}

// Purge removes every rule and the metadata.
func (s *boltStore) Purge() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := resetBuckets(tx); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketMeta); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketMeta)
		return err
	})
}

func (s *boltStore) Stats() rules.StoreStats {
	st := rules.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketBlockExact); b != nil {
			st.ExactKeys = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketBlockSuffix); b != nil {
			st.SuffixKeys = uint64(b.Stats().KeyN)
		}
		for _, name := range [][]byte{bucketAllowExact, bucketAllowSuffix} {
			if b := tx.Bucket(name); b != nil {
				st.AllowKeys += uint64(b.Stats().KeyN)
			}
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}

func resetBuckets(tx *bbolt.Tx) error {
	for _, name := range ruleBuckets {
		if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return err
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return err
		}
	}
	return nil
}

func putMeta(tx *bbolt.Tx, version uint64, updatedUnix int64) error {
	b := tx.Bucket(bucketMeta)
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version)
	binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
	if err := b.Put(keyVersion, vbuf); err != nil {
		return err
	}
	return b.Put(keyUpdated, ubuf)
}

func encodeRule(r domain.HostRule) []byte {
	buf := make([]byte, 8+len(r.Source))
	var nanos int64
	if !r.AddedAt.IsZero() {
		nanos = r.AddedAt.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[:8], uint64(nanos))
	copy(buf[8:], r.Source)
	return buf
}

func decodeRule(name string, kind domain.HostRuleKind, action domain.RuleAction, v []byte) (domain.HostRule, error) {
	if len(v) < 8 {
		return domain.HostRule{}, ErrCorruptValue
	}
	r := domain.HostRule{
		Name:   name,
		Kind:   kind,
		Action: action,
		Source: string(v[8:]),
	}
	if nanos := int64(binary.BigEndian.Uint64(v[:8])); nanos != 0 {
		r.AddedAt = time.Unix(0, nanos)
	}
	return r, nil
}

// reverse must stay in sync with the repository's reversal of suffix anchors
// for Bloom keys.
func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
