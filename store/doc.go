// Package store defines the aggregate persistence interface and hosts
// the backend implementations in its subdirectories:
//
//   - memory: in-memory maps, for tests and single-process development
//   - redis: Redis hashes and sorted sets, for production deployments
//
// Backends must keep the job-claim path atomic: DequeueJobs may never
// hand the same job to two worker slots, no matter how many processes
// poll concurrently.
package store
