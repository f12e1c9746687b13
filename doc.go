// Package sjq implements a topic-based job queue that chains independently
// invoked handler executables into multi-stage pipelines, coordinated
// through Redis.
//
// A job carries a JSON payload and an optional binary attachment. A topic
// handler consumes one job and may emit follow-up jobs for other topics,
// forming a job-chaining graph with parent/child lineage. All cross-process
// coordination — identifier collision avoidance, queue transitions, topic
// locks — is expressed as single atomic Redis operations, so no coordinator
// beyond Redis itself is needed.
//
// sjq is designed as a library with a thin CLI on top. Each concern lives in
// its own package (job, queue, lock, topics, runner, worker) and talks to
// Redis through the narrow contracts it declares; store/redis implements
// them all on one client.
package sjq
