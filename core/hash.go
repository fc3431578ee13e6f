package core

import (
	"encoding/hex"
	"slices"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

const hashSize = 16 // 128 bits

// EmptyHash is the digest assigned to empty text.
var EmptyHash = strings.Repeat("0", hashSize*2)

// Hash computes a deterministic 128-bit BLAKE2b digest of text, hex encoded.
// Empty text hashes to EmptyHash.
func Hash(text string) string {
	if text == "" {
		return EmptyHash
	}
	h, _ := blake2b.New(hashSize, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// DiffResult is the outcome of comparing a record against its snapshot.
type DiffResult int

const (
	// Unchanged means the current and snapshot hashes are equal.
	Unchanged DiffResult = iota
	// Changed means the hashes differ.
	Changed
	// New means there is no snapshot for the record.
	New
	// Pending means the hashes are equal but an earlier sync of the record
	// did not complete.
	Pending
)

func (d DiffResult) String() string {
	switch d {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case New:
		return "new"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// Diff compares a current hash against a snapshot hash.
// hasSnapshot reports whether a snapshot row exists for the record at all.
func Diff(currentHash, snapshotHash string, hasSnapshot bool) DiffResult {
	if !hasSnapshot {
		return New
	}
	if currentHash != snapshotHash {
		return Changed
	}
	return Unchanged
}

// ChangeEntry is one record that needs work in the current run.
type ChangeEntry struct {
	ID     uint64
	Key    RecordKey
	Result DiffResult
}

// ChangeSet lists the records whose content differs from their snapshot.
type ChangeSet struct {
	Entries []ChangeEntry
}

// Len returns the number of entries.
func (c ChangeSet) Len() int {
	return len(c.Entries)
}

// Contains reports whether key is part of the change set.
func (c ChangeSet) Contains(key RecordKey) bool {
	for _, e := range c.Entries {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Count returns how many entries carry the given result.
func (c ChangeSet) Count(result DiffResult) int {
	n := 0
	for _, e := range c.Entries {
		if e.Result == result {
			n++
		}
	}
	return n
}

// BuildChangeSet diffs every current record against the snapshot hashes.
// Unchanged records still marked pending are included as Pending. Entries
// are sorted by key.
func BuildChangeSet(current []HashEntry, snapshots map[RecordKey]string) ChangeSet {
	entries := make([]ChangeEntry, 0)
	for _, c := range current {
		snapHash, ok := snapshots[c.Key]
		result := Diff(c.Hash, snapHash, ok)
		if result == Unchanged {
			if !c.Pending {
				continue
			}
			result = Pending
		}
		entries = append(entries, ChangeEntry{ID: c.ID, Key: c.Key, Result: result})
	}
	slices.SortFunc(entries, func(a, b ChangeEntry) int {
		switch {
		case a.Key.Less(b.Key):
			return -1
		case b.Key.Less(a.Key):
			return 1
		default:
			return 0
		}
	})
	return ChangeSet{Entries: entries}
}
