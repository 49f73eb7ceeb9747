package audit

import (
	"os"
	"path/filepath"
	"testing"
)

func benchEntry() Entry {
	return Entry{
		RunID:    "run-bench",
		Project:  "acme/api",
		Category: "branch",
		Target:   "main",
		Rule:     "main",
		Op:       "protect",
		Merge:    "maintainer",
		Push:     "no_access",
	}
}

func BenchmarkRecord_Single(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.jsonl")
	al, err := Open(path)
	if err != nil {
		b.Fatal(err)
	}
	defer al.Close()

	entry := benchEntry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		al.Record(entry)
	}
}

func BenchmarkRecord_Sequential100(b *testing.B) {
	entry := benchEntry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := filepath.Join(b.TempDir(), "bench.jsonl")
		al, err := Open(path)
		if err != nil {
			b.Fatal(err)
		}
		for j := 0; j < 100; j++ {
			al.Record(entry)
		}
		al.Close()
	}
}

func benchVerify(b *testing.B, n int) {
	b.Helper()
	path := filepath.Join(b.TempDir(), "bench.jsonl")
	al, err := Open(path)
	if err != nil {
		b.Fatal(err)
	}
	entry := benchEntry()
	for i := 0; i < n; i++ {
		al.Record(entry)
	}
	al.Close()

	// Verify the file exists and has content
	info, _ := os.Stat(path)
	b.ResetTimer()
	b.SetBytes(info.Size())

	for i := 0; i < b.N; i++ {
		result := Verify(path)
		if !result.Valid {
			b.Fatal("invalid chain:", result.Error)
		}
	}
}

func BenchmarkVerify_1000(b *testing.B) {
	benchVerify(b, 1000)
}

func BenchmarkVerify_10000(b *testing.B) {
	benchVerify(b, 10000)
}
