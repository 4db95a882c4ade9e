// Package redis implements store.Store backed by Redis. Jobs are stored
// as Hashes, the due queue is a Sorted Set scored by run time, and the
// failure archive is a Sorted Set scored by failure time so listings
// come back newest first.
//
// The caller owns the Redis client lifecycle -- the store never closes
// it. Pass the client through the constructor:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
