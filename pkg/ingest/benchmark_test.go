package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/japaniel/discoursehash/pkg/intake"
)

func setupBenchmarkDB(b *testing.B) *sql.DB {
	conn := setupDB(b)
	// Optimize SQLite for performance to focus on application throughput
	_, _ = conn.Exec("PRAGMA synchronous = OFF")
	return conn
}

func generateBenchmarkDocuments(n int) []intake.Document {
	docs := make([]intake.Document, 0, n)
	for i := 0; i < n; i++ {
		doc := sampleDocument(0)
		doc.Discourse.DocumentHash = fmt.Sprintf("bench-%d", i)
		docs = append(docs, doc)
	}
	return docs
}

func BenchmarkIngest(b *testing.B) {
	// 1000 single-sentence discourses
	docs := generateBenchmarkDocuments(1000)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		conn := setupBenchmarkDB(b)

		ingester := NewIngester(conn, nil, nil)
		ingester.Workers = 4
		ingester.BatchSize = 100
		b.StartTimer()

		_, err := ingester.Ingest(context.Background(), docs)
		b.StopTimer()
		if err != nil {
			b.Fatalf("Ingest failed: %v", err)
		}
	}
}

func BenchmarkIngestConcurrencyScaling(b *testing.B) {
	// Compare different worker counts.
	// Note: On small datasets or in-memory DBs, overhead of spawning workers might outweigh benefits.
	// But valid for ensuring no massive regressions.
	counts := []int{1, 2, 4, 8}
	docs := generateBenchmarkDocuments(1000)

	for _, workers := range counts {
		b.Run(fmt.Sprintf("Workers_%d", workers), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				conn := setupBenchmarkDB(b)

				ingester := NewIngester(conn, nil, nil)
				ingester.Workers = workers
				ingester.BatchSize = 100 // Keep batch size constant
				b.StartTimer()

				_, err := ingester.Ingest(context.Background(), docs)
				b.StopTimer()
				if err != nil {
					b.Fatalf("Ingest failed: %v", err)
				}
			}
		})
	}
}
