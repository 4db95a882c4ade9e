// Package ratelimit gates how fast extraction jobs are handed to the
// AI collaborator, per document type and per user.
//
// The extraction backend has its own quota, but depending on the
// platform quota error for pacing wastes an attempt every time. The
// pipeline instead rate-limits dispatch locally: a worker consults the
// [Manager] before handing a job to the extractor and leaves the job in
// the queue when no token is available.
//
// # Per-Type Configuration
//
// Use [Config] to set per-document-type rate limits and concurrency caps:
//
//	ratelimit.Config{
//	    Type:           "invoice",
//	    MaxConcurrency: 5,      // max 5 concurrent invoice extractions
//	    RateLimit:      2,      // max 2 extractions/s for this type
//	    RateBurst:      4,      // allow bursts up to 4
//	}
//
// # Manager
//
// [Manager] enforces per-type and per-user limits at dispatch time.
// It uses a token-bucket rate limiter (golang.org/x/time/rate) and an
// active-count gate for concurrency limits.
//
//	m := ratelimit.NewManager(configs...)
//	if m.Acquire(docType, userID) {
//	    defer m.Release(docType, userID)
//	    // run the extraction
//	}
//
// Document types without a [Config] have no limits beyond the
// pool-wide concurrency.
package ratelimit
