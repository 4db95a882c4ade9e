package redis

// Redis key naming conventions for docpipe data.
// All keys are prefixed with "docpipe:" to avoid collisions.

const keyPrefix = "docpipe:"

// ── Job keys ──

// jobKey returns the key for a job entity: docpipe:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// queueKey is the Sorted Set of due jobs, scored by run time.
const queueKey = keyPrefix + "queue"

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// batchKey returns the Set tracking job IDs for a batch: docpipe:batch:{id}
func batchKey(id string) string { return keyPrefix + "batch:" + id }

// ── Failure archive keys ──

// failKey returns the key for an archived failure: docpipe:fail:{id}
func failKey(id string) string { return keyPrefix + "fail:" + id }

// failIDsKey is the Sorted Set of failure IDs, scored by failure time
// so listings come back newest first.
const failIDsKey = keyPrefix + "fail_ids"
