package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Key layout under prefix:
//
//	<prefix>:job:<id>        hash: spec, status, enqueued_at, started_at, ended_at, attempts, outcome, pair, worker
//	<prefix>:pair:<hash>:<c> string: id of the live job for the pair
//	<prefix>:queue           list of queued ids (LPUSH / BRPOP)
//	<prefix>:queued          zset of queued ids scored by enqueue time
//	<prefix>:leases          zset of running ids scored by lease deadline
//	<prefix>:worker:<id>     string with TTL per live worker
//
// Times are unix milliseconds.

var claimScript = goredis.NewScript(`
local ok = redis.call('SET', KEYS[1], ARGV[1], 'NX')
if not ok then
	local existing = redis.call('GET', KEYS[1])
	if existing and redis.call('EXISTS', ARGV[4] .. existing) == 1 then
		local status = redis.call('HGET', ARGV[4] .. existing, 'status')
		if status == 'queued' or status == 'running' then
			return existing
		end
	end
	redis.call('SET', KEYS[1], ARGV[1])
end
redis.call('HSET', KEYS[2],
	'spec', ARGV[2],
	'status', 'queued',
	'enqueued_at', ARGV[3],
	'attempts', 0,
	'pair', KEYS[1])
redis.call('LPUSH', KEYS[3], ARGV[1])
redis.call('ZADD', KEYS[4], ARGV[3], ARGV[1])
return ARGV[1]
`)

var startScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= 'queued' then
	return 0
end
redis.call('HSET', KEYS[1], 'status', 'running', 'started_at', ARGV[2], 'worker', ARGV[4])
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
redis.call('ZREM', KEYS[3], ARGV[1])
return 1
`)

var extendScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'status') ~= 'running' then
	return 0
end
redis.call('ZADD', KEYS[2], 'XX', ARGV[2], ARGV[1])
return 1
`)

var finishScript = goredis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return -1
end
if status == 'finished' or status == 'failed' then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'outcome', ARGV[3], 'ended_at', ARGV[4])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[3], ARGV[1])
local pair = redis.call('HGET', KEYS[1], 'pair')
if pair and redis.call('GET', pair) == ARGV[1] then
	redis.call('DEL', pair)
end
if tonumber(ARGV[5]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
return 1
`)

type redisBackend struct {
	client goredis.UniversalClient
	prefix string
}

// NewRedisBackend returns a Backend storing jobs in Redis under prefix.
// Scripts touch the pair key named inside the job hash, so the backend
// expects a single Redis node rather than a cluster.
func NewRedisBackend(client goredis.UniversalClient, prefix string) Backend {
	return &redisBackend{client: client, prefix: prefix}
}

func (r *redisBackend) jobKey(id string) string { return r.prefix + ":job:" + id }
func (r *redisBackend) jobPrefix() string       { return r.prefix + ":job:" }
func (r *redisBackend) queueKey() string        { return r.prefix + ":queue" }
func (r *redisBackend) queuedKey() string       { return r.prefix + ":queued" }
func (r *redisBackend) leasesKey() string       { return r.prefix + ":leases" }
func (r *redisBackend) workerKey(id string) string {
	return r.prefix + ":worker:" + id
}
func (r *redisBackend) pairKey(sourceHash, criterionID string) string {
	return r.prefix + ":pair:" + pairKey(sourceHash, criterionID)
}

func (r *redisBackend) Claim(ctx context.Context, job Job) (string, bool, error) {
	spec, err := json.Marshal(job.Spec)
	if err != nil {
		return "", false, fmt.Errorf("marshal job spec: %w", err)
	}

	keys := []string{
		r.pairKey(job.SourceHash, job.CriterionID),
		r.jobKey(job.ID),
		r.queueKey(),
		r.queuedKey(),
	}
	id, err := claimScript.Run(ctx, r.client, keys,
		job.ID, spec, job.EnqueuedAt.UnixMilli(), r.jobPrefix(),
	).Text()
	if err != nil {
		return "", false, fmt.Errorf("claim job: %w", err)
	}
	return id, id == job.ID, nil
}

func (r *redisBackend) Get(ctx context.Context, id string) (Job, error) {
	fields, err := r.client.HGetAll(ctx, r.jobKey(id)).Result()
	if err != nil {
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	if len(fields) == 0 {
		return Job{}, ErrNotFound
	}
	return decodeJob(id, fields)
}

func (r *redisBackend) Next(ctx context.Context, workerID string, lease, wait time.Duration) (Job, bool, error) {
	res, err := r.client.BRPop(ctx, wait, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return Job{}, false, nil
		}
		return Job{}, false, fmt.Errorf("pop queue: %w", err)
	}
	id := res[1]

	now := time.Now()
	keys := []string{r.jobKey(id), r.leasesKey(), r.queuedKey()}
	started, err := startScript.Run(ctx, r.client, keys,
		id, now.UnixMilli(), now.Add(lease).UnixMilli(), workerID,
	).Int()
	if err != nil {
		return Job{}, false, fmt.Errorf("start job %s: %w", id, err)
	}
	if started == 0 {
		return Job{}, false, nil
	}

	job, err := r.Get(ctx, id)
	if err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}

func (r *redisBackend) Extend(ctx context.Context, id string, lease time.Duration) (bool, error) {
	keys := []string{r.jobKey(id), r.leasesKey()}
	n, err := extendScript.Run(ctx, r.client, keys, id, time.Now().Add(lease).UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("extend lease: %w", err)
	}
	return n == 1, nil
}

func (r *redisBackend) Finish(ctx context.Context, id string, o Outcome, retain time.Duration) (Job, bool, error) {
	outcome, err := json.Marshal(o)
	if err != nil {
		return Job{}, false, fmt.Errorf("marshal outcome: %w", err)
	}

	keys := []string{r.jobKey(id), r.leasesKey(), r.queuedKey()}
	n, err := finishScript.Run(ctx, r.client, keys,
		id, string(o.Status), outcome, time.Now().UnixMilli(), retain.Milliseconds(),
	).Int()
	if err != nil {
		return Job{}, false, fmt.Errorf("finish job: %w", err)
	}
	if n < 0 {
		return Job{}, false, ErrNotFound
	}

	job, err := r.Get(ctx, id)
	if err != nil {
		return Job{}, false, err
	}
	return job, n == 1, nil
}

func (r *redisBackend) Expired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return r.rangeBefore(ctx, r.leasesKey(), now, limit)
}

func (r *redisBackend) Stale(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return r.rangeBefore(ctx, r.queuedKey(), cutoff, limit)
}

func (r *redisBackend) rangeBefore(ctx context.Context, key string, t time.Time, limit int) ([]string, error) {
	ids, err := r.client.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(t.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	return ids, nil
}

func (r *redisBackend) Counts(ctx context.Context) (int64, int64, error) {
	pipe := r.client.Pipeline()
	queued := pipe.ZCard(ctx, r.queuedKey())
	running := pipe.ZCard(ctx, r.leasesKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("count jobs: %w", err)
	}
	return queued.Val(), running.Val(), nil
}

func (r *redisBackend) Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.workerKey(workerID), time.Now().UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("worker heartbeat: %w", err)
	}
	return nil
}

func (r *redisBackend) Workers(ctx context.Context) (int64, error) {
	var n int64
	iter := r.client.Scan(ctx, 0, r.workerKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan workers: %w", err)
	}
	return n, nil
}

func decodeJob(id string, fields map[string]string) (Job, error) {
	job := Job{ID: id, Status: Status(fields["status"])}

	if err := json.Unmarshal([]byte(fields["spec"]), &job.Spec); err != nil {
		return Job{}, fmt.Errorf("decode job %s spec: %w", id, err)
	}

	job.EnqueuedAt = millis(fields["enqueued_at"])
	if v, ok := fields["started_at"]; ok {
		t := millis(v)
		job.StartedAt = &t
	}
	if v, ok := fields["ended_at"]; ok {
		t := millis(v)
		job.EndedAt = &t
	}
	job.Attempts, _ = strconv.Atoi(fields["attempts"])

	if raw, ok := fields["outcome"]; ok && raw != "" {
		var o Outcome
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			return Job{}, fmt.Errorf("decode job %s outcome: %w", id, err)
		}
		job.Result = o.Verdict
		job.Error = o.Failure
	}

	return job, nil
}

func millis(s string) time.Time {
	n, _ := strconv.ParseInt(s, 10, 64)
	return time.UnixMilli(n).UTC()
}
