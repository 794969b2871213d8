package utils

import (
	"errors"
	"sync"
	"time"
)

// WorkerPool runs jobs on a bounded number of goroutines, optionally spacing
// job starts by a minimum interval, and collects the errors they return.
type WorkerPool struct {
	maxWorkers  int
	rateLimitMs int
	semaphore   chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastStart   time.Time
	errs        []error
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
// A concurrency below 1 is treated as 1.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers:  maxWorkers,
		rateLimitMs: rateLimitMs,
		semaphore:   make(chan struct{}, maxWorkers),
		lastStart:   time.Now(),
	}
}

// Submit enqueues a job. It blocks while all workers are busy.
func (wp *WorkerPool) Submit(job func() error) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.enforceRateLimit()
		if err := job(); err != nil {
			wp.mu.Lock()
			wp.errs = append(wp.errs, err)
			wp.mu.Unlock()
		}
	}()
}

// Wait blocks until all submitted jobs have completed and returns their
// errors joined, or nil when every job succeeded.
func (wp *WorkerPool) Wait() error {
	wp.wg.Wait()

	wp.mu.Lock()
	defer wp.mu.Unlock()
	err := errors.Join(wp.errs...)
	wp.errs = nil
	return err
}

func (wp *WorkerPool) enforceRateLimit() {
	if wp.rateLimitMs <= 0 {
		return
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	minInterval := time.Duration(wp.rateLimitMs) * time.Millisecond
	elapsed := time.Since(wp.lastStart)
	if elapsed < minInterval {
		time.Sleep(minInterval - elapsed)
	}
	wp.lastStart = time.Now()
}

// URLSet is a thread-safe set of URLs already queued for fetching.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the URL has already been added.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
