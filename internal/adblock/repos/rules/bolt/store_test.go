package bolt

import (
	"path/filepath"
	"testing"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules"
)

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "nested", "rules.db")
}

func openStore(t *testing.T) rules.Store {
	t.Helper()
	st, err := New(tempDB(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBoltStore_GetFirstMatch_ExactAndSuffix(t *testing.T) {
	st := openStore(t)

	if _, ok, err := st.GetFirstMatch("a.example.com", domain.ActionBlock); err != nil || ok {
		t.Fatalf("expected empty miss, got ok=%v err=%v", ok, err)
	}

	now := time.Unix(1723551000, 0)
	rs := []domain.HostRule{
		{Name: "a.example.com", Kind: domain.HostRuleExact, Source: "t", AddedAt: now},
		{Name: "example.net", Kind: domain.HostRuleSuffix, Source: "list", AddedAt: now},
		{Name: "ads.example.net", Kind: domain.HostRuleSuffix, Source: "list2", AddedAt: now},
	}
	if err := st.RebuildAll(rs, 1, now.Unix()); err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}

	r, ok, err := st.GetFirstMatch("a.example.com", domain.ActionBlock)
	if err != nil || !ok || r.Name != "a.example.com" || r.Kind != domain.HostRuleExact || r.Source != "t" {
		t.Fatalf("exact unexpected: r=%+v ok=%v err=%v", r, ok, err)
	}
	if !r.AddedAt.Equal(now) {
		t.Fatalf("AddedAt not round-tripped: %v", r.AddedAt)
	}

	r, ok, err = st.GetFirstMatch("sub.example.net", domain.ActionBlock)
	if err != nil || !ok || r.Name != "example.net" || r.Kind != domain.HostRuleSuffix {
		t.Fatalf("suffix unexpected: r=%+v ok=%v err=%v", r, ok, err)
	}

	// apex-inclusive
	if _, ok, _ = st.GetFirstMatch("example.net", domain.ActionBlock); !ok {
		t.Fatalf("suffix rule should match its apex")
	}

	// most specific anchor wins
	r, ok, _ = st.GetFirstMatch("x.ads.example.net", domain.ActionBlock)
	if !ok || r.Name != "ads.example.net" || r.Source != "list2" {
		t.Fatalf("expected most specific anchor, got %+v", r)
	}

	// label boundary respected
	if _, ok, _ = st.GetFirstMatch("badexample.net", domain.ActionBlock); ok {
		t.Fatalf("suffix must only match on label boundaries")
	}

	if _, ok, err = st.GetFirstMatch("nope.tld", domain.ActionBlock); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestBoltStore_ActionsAreSeparate(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	rs := []domain.HostRule{
		{Name: "example.com", Kind: domain.HostRuleSuffix, Action: domain.ActionBlock, Source: "list", AddedAt: now},
		{Name: "cdn.example.com", Kind: domain.HostRuleExact, Action: domain.ActionAllow, Source: "custom", AddedAt: now},
	}
	if err := st.RebuildAll(rs, 2, now.Unix()); err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}

	r, ok, err := st.GetFirstMatch("cdn.example.com", domain.ActionAllow)
	if err != nil || !ok || r.Action != domain.ActionAllow || r.Source != "custom" {
		t.Fatalf("allow lookup unexpected: r=%+v ok=%v err=%v", r, ok, err)
	}
	if _, ok, _ := st.GetFirstMatch("www.example.com", domain.ActionAllow); ok {
		t.Fatalf("block rule leaked into allow lookup")
	}
	r, ok, _ = st.GetFirstMatch("cdn.example.com", domain.ActionBlock)
	if !ok || r.Action != domain.ActionBlock || r.Name != "example.com" {
		t.Fatalf("block lookup unexpected: %+v", r)
	}

	stats := st.Stats()
	if stats.ExactKeys != 0 || stats.SuffixKeys != 1 || stats.AllowKeys != 1 || stats.Version != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBoltStore_RebuildReplacesSnapshot(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	if err := st.RebuildAll([]domain.HostRule{{Name: "old.example", Kind: domain.HostRuleExact, Source: "s", AddedAt: now}}, 1, 100); err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	rs := []domain.HostRule{
		{Name: "new.example", Kind: domain.HostRuleExact, Source: "s", AddedAt: now},
		{Name: "", Kind: domain.HostRuleExact, Source: "s", AddedAt: now},
		{Name: "weird.example", Kind: domain.HostRuleKind(9), Source: "s", AddedAt: now},
	}
	if err := st.RebuildAll(rs, 2, 200); err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	if _, ok, _ := st.GetFirstMatch("old.example", domain.ActionBlock); ok {
		t.Fatalf("old rule survived rebuild")
	}
	if _, ok, _ := st.GetFirstMatch("new.example", domain.ActionBlock); !ok {
		t.Fatalf("new rule missing after rebuild")
	}
	stats := st.Stats()
	if stats.ExactKeys != 1 || stats.Version != 2 || stats.UpdatedUnix != 200 {
		t.Fatalf("unexpected stats after rebuild: %+v", stats)
	}
}

func TestBoltStore_Purge(t *testing.T) {
	st := openStore(t)
	now := time.Now()
	rs := []domain.HostRule{{Name: "a.example.com", Kind: domain.HostRuleExact, Source: "t", AddedAt: now}}
	if err := st.RebuildAll(rs, 1, now.Unix()); err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	if _, ok, _ := st.GetFirstMatch("a.example.com", domain.ActionBlock); !ok {
		t.Fatalf("expected hit before purge")
	}
	if err := st.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, ok, _ := st.GetFirstMatch("a.example.com", domain.ActionBlock); ok {
		t.Fatalf("expected miss after purge")
	}
	if s := st.Stats(); s != (rules.StoreStats{}) {
		t.Fatalf("expected zero stats after purge, got %+v", s)
	}
}

func TestBoltStore_ReopenKeepsRules(t *testing.T) {
	path := tempDB(t)
	st, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Now()
	if err := st.RebuildAll([]domain.HostRule{{Name: "persist.example", Kind: domain.HostRuleSuffix, Source: "s", AddedAt: now}}, 5, now.Unix()); err != nil {
		t.Fatalf("RebuildAll: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if _, ok, _ := st.GetFirstMatch("www.persist.example", domain.ActionBlock); !ok {
		t.Fatalf("rule lost across reopen")
	}
	if st.Stats().Version != 5 {
		t.Fatalf("version lost across reopen")
	}
}

func TestBoltStore_CorruptValue(t *testing.T) {
	path := tempDB(t)
	st, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bs := st.(*boltStore)
	defer bs.Close()
	if err := bs.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlockExact).Put([]byte("bad.example"), []byte{1})
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok, err := bs.GetFirstMatch("bad.example", domain.ActionBlock); err == nil || ok {
		t.Fatalf("expected corrupt value error, got ok=%v err=%v", ok, err)
	}
}

func TestNew_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	// a directory cannot be opened as a database file
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error opening a directory as db")
	}
}

func TestEncodeDecodeRule_ZeroTime(t *testing.T) {
	v := encodeRule(domain.HostRule{Name: "x.example", Source: "src"})
	r, err := decodeRule("x.example", domain.HostRuleExact, domain.ActionBlock, v)
	if err != nil {
		t.Fatalf("decodeRule: %v", err)
	}
	if !r.AddedAt.IsZero() || r.Source != "src" {
		t.Fatalf("unexpected decoded rule: %+v", r)
	}
}
