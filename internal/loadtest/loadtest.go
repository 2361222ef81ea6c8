// Package loadtest provides load testing utilities for the local cache
// layer.
//
// This package simulates concurrent UI access patterns to validate that
// the cache can serve 100+ concurrent readers with low query latency
// while full snapshot refreshes churn underneath them.
package loadtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/docshare/docsync/internal/record"
	"github.com/docshare/docsync/internal/store"
)

// TestCache represents a populated cache for load testing.
type TestCache struct {
	DB        *store.DB
	DocIDs    []string
	TotalDocs int
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
	Durations    []time.Duration
}

// CreateTestCache creates a cache at dbPath populated with numDocs
// documents spread across the document types with staggered timestamps.
func CreateTestCache(dbPath string, numDocs int) (*TestCache, error) {
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// Widen the pool for high reader concurrency.
	db.RawDB().SetMaxOpenConns(150)
	db.RawDB().SetMaxIdleConns(50)
	db.RawDB().SetConnMaxLifetime(10 * time.Minute)

	ctx := context.Background()
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	tc := &TestCache{
		DB:        db,
		DocIDs:    make([]string, 0, numDocs),
		TotalDocs: numDocs,
	}

	docs := generateDocuments(numDocs)
	if err := db.ReplaceAllDocuments(ctx, docs); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to populate cache: %w", err)
	}
	for _, doc := range docs {
		tc.DocIDs = append(tc.DocIDs, doc.ID)
	}

	return tc, nil
}

// Close closes the test cache connection.
func (tc *TestCache) Close() error {
	if tc.DB != nil {
		return tc.DB.Close()
	}
	return nil
}

// RunConcurrentSearches simulates N concurrent readers searching the
// catalog.
//
// Each reader performs queriesPerReader searches, recording latency for
// each. Returns aggregated latency statistics.
func (tc *TestCache) RunConcurrentSearches(numReaders, queriesPerReader int) (*LatencyStats, error) {
	var wg sync.WaitGroup

	resultsChan := make(chan []time.Duration, numReaders)
	errorsChan := make(chan error, numReaders)

	queries := []string{"notes", "exam", "intro", ""}

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			durations := make([]time.Duration, 0, queriesPerReader)
			ctx := context.Background()

			for j := 0; j < queriesPerReader; j++ {
				query := queries[(readerID+j)%len(queries)]

				start := time.Now()
				_, err := tc.DB.SearchDocuments(ctx, query, "")
				elapsed := time.Since(start)

				durations = append(durations, elapsed)

				if err != nil {
					errorsChan <- fmt.Errorf("reader %d query %d failed: %w", readerID, j, err)
					return
				}
			}

			resultsChan <- durations
		}(i)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	var errorCount int
	for err := range errorsChan {
		if err != nil {
			errorCount++
			fmt.Printf("Error: %v\n", err)
		}
	}

	var allDurations []time.Duration
	for durations := range resultsChan {
		allDurations = append(allDurations, durations...)
	}

	if len(allDurations) == 0 {
		return nil, fmt.Errorf("no successful queries completed")
	}

	stats := computeLatencyStats(allDurations)
	stats.Errors = errorCount

	return stats, nil
}

// VerifyNoEmptyReads runs readers against a writer cycling full
// snapshot installs for the given duration.
//
// Readers must observe a fully populated catalog on every read: a
// snapshot install that briefly exposed an empty or partial set to a
// reader is the failure this test exists to catch.
func (tc *TestCache) VerifyNoEmptyReads(numReaders int, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var wg sync.WaitGroup
	errorsChan := make(chan error, numReaders+1)

	// Writer: reinstall the full snapshot in a tight loop.
	wg.Add(1)
	go func() {
		defer wg.Done()

		docs := generateDocuments(tc.TotalDocs)
		for ctx.Err() == nil {
			if err := tc.DB.ReplaceAllDocuments(ctx, docs); err != nil && ctx.Err() == nil {
				errorsChan <- fmt.Errorf("snapshot install failed: %w", err)
				return
			}
		}
	}()

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			for {
				select {
				case <-ctx.Done():
					return
				default:
					docs, err := tc.DB.Documents(ctx)
					if err != nil && ctx.Err() == nil {
						errorsChan <- fmt.Errorf("reader %d read failed: %w", readerID, err)
						return
					}
					if ctx.Err() != nil {
						return
					}

					if len(docs) != tc.TotalDocs {
						errorsChan <- fmt.Errorf("reader %d saw %d documents mid-install, want %d", readerID, len(docs), tc.TotalDocs)
						return
					}
					for _, doc := range docs {
						if doc.ID == "" || doc.Title == "" {
							errorsChan <- fmt.Errorf("reader %d found malformed document %+v", readerID, doc)
							return
						}
					}

					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	wg.Wait()
	close(errorsChan)

	for err := range errorsChan {
		if err != nil {
			return err
		}
	}

	return nil
}

// GetStats returns statistics about the test cache.
func (tc *TestCache) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_documents": tc.TotalDocs,
	}
}

// generateDocuments creates test documents with a realistic spread of
// types and staggered update times.
func generateDocuments(count int) []*record.Document {
	docs := make([]*record.Document, count)
	types := []record.DocType{record.DocExam, record.DocBook, record.DocLecture, record.DocOther}
	titles := []string{"Intro notes", "Final exam", "Course book", "Lecture slides"}

	baseTime := time.Now().Add(-30 * 24 * time.Hour)

	for i := 0; i < count; i++ {
		docs[i] = &record.Document{
			ID:        fmt.Sprintf("doc-%05d", i),
			Title:     fmt.Sprintf("%s %d", titles[i%len(titles)], i),
			Type:      types[i%len(types)],
			AuthorID:  fmt.Sprintf("author-%d", i%25),
			Downloads: i % 500,
			Rating:    float64(i%50) / 10,
			UpdatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}
	}

	return docs
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	mean := sum / time.Duration(len(durations))

	p50 := sorted[len(sorted)*50/100]
	p95 := sorted[len(sorted)*95/100]
	p99 := sorted[len(sorted)*99/100]

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         mean,
		P50:          p50,
		P95:          p95,
		P99:          p99,
		TotalQueries: len(durations),
		Durations:    sorted,
	}
}

// PrintStats formats and prints latency statistics.
func (s *LatencyStats) PrintStats() {
	fmt.Printf("Latency Statistics:\n")
	fmt.Printf("  Total Queries: %d\n", s.TotalQueries)
	fmt.Printf("  Errors:        %d\n", s.Errors)
	fmt.Printf("  Min:           %v\n", s.Min)
	fmt.Printf("  P50 (Median):  %v\n", s.P50)
	fmt.Printf("  Mean:          %v\n", s.Mean)
	fmt.Printf("  P95:           %v\n", s.P95)
	fmt.Printf("  P99:           %v\n", s.P99)
	fmt.Printf("  Max:           %v\n", s.Max)
}
