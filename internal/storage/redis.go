package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kode4food/txsaga/pkg/saga"
)

// RedisStorage is the production Storage implementation: checkpoints are
// Redis strings, the per-model checkpoint index is a Redis set, timer
// schedules are Redis sorted sets polled by a background goroutine per
// kind, and locks are SET NX PX tokens (grounded on the teacher's
// retry_queue.go/scheduler.go idiom, adapted from an in-process heap to
// cross-process sorted-set polling since Storage must coordinate
// multiple orchestrator processes, not just one).
type RedisStorage struct {
	client *redis.Client
	prefix string

	pollInterval time.Duration
	events       chan TimerEvent

	closeOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewRedisStorage constructs a RedisStorage against an already-configured
// *redis.Client (production callers build one from internal/config;
// tests substitute miniredis's address, see NewTestStorage).
func NewRedisStorage(client *redis.Client, prefix string) *RedisStorage {
	s := &RedisStorage{
		client:       client,
		prefix:       prefix,
		pollInterval: 250 * time.Millisecond,
		events:       make(chan TimerEvent, 64),
		stop:         make(chan struct{}),
	}
	s.wg.Add(3)
	go s.poll(TimerRetry)
	go s.poll(TimerStepTimeout)
	go s.poll(TimerTransactionTimeout)
	return s
}

func (s *RedisStorage) checkpointKey(model saga.ModelID, tx saga.TransactionID) string {
	return fmt.Sprintf("%s:cp:%s:%s", s.prefix, model, tx)
}

func (s *RedisStorage) indexKey(model saga.ModelID) string {
	return fmt.Sprintf("%s:cps:%s", s.prefix, model)
}

func (s *RedisStorage) archiveKey(model saga.ModelID, tx saga.TransactionID) string {
	return fmt.Sprintf("%s:archive:%s:%s", s.prefix, model, tx)
}

func (s *RedisStorage) lockKey(model saga.ModelID, tx saga.TransactionID) string {
	return fmt.Sprintf("%s:lock:%s:%s", s.prefix, model, tx)
}

func (s *RedisStorage) timerSetKey(kind TimerKind) string {
	return fmt.Sprintf("%s:timers:%s", s.prefix, kind)
}

func timerMember(model saga.ModelID, tx saga.TransactionID, step saga.StepID) string {
	if step == "" {
		return string(model) + "|" + string(tx)
	}
	return string(model) + "|" + string(tx) + "|" + string(step)
}

func parseTimerMember(kind TimerKind, member string) (TimerEvent, bool) {
	parts := strings.SplitN(member, "|", 3)
	if len(parts) < 2 {
		return TimerEvent{}, false
	}
	ev := TimerEvent{
		Kind:          kind,
		ModelID:       saga.ModelID(parts[0]),
		TransactionID: saga.TransactionID(parts[1]),
	}
	if len(parts) == 3 {
		ev.StepID = saga.StepID(parts[2])
	}
	return ev, true
}

func (s *RedisStorage) Get(ctx context.Context, model saga.ModelID, tx saga.TransactionID) (*saga.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(model, tx)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return saga.UnmarshalCheckpoint(data)
}

func (s *RedisStorage) List(ctx context.Context, model saga.ModelID) ([]*saga.Checkpoint, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(model)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*saga.Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp, err := s.Get(ctx, model, saga.TransactionID(id))
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *RedisStorage) Save(ctx context.Context, model saga.ModelID, tx saga.TransactionID, cp *saga.Checkpoint, ttl time.Duration) error {
	data, err := cp.Marshal()
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.checkpointKey(model, tx), data, ttl)
	pipe.SAdd(ctx, s.indexKey(model), string(tx))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStorage) Delete(ctx context.Context, model saga.ModelID, tx saga.TransactionID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.checkpointKey(model, tx))
	pipe.SRem(ctx, s.indexKey(model), string(tx))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStorage) Archive(ctx context.Context, model saga.ModelID, tx saga.TransactionID, cp *saga.Checkpoint, opts ArchiveOptions) error {
	data, err := cp.Marshal()
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.archiveKey(model, tx), data, opts.RetentionTime)
	pipe.Del(ctx, s.checkpointKey(model, tx))
	pipe.SRem(ctx, s.indexKey(model), string(tx))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStorage) scheduleTimer(ctx context.Context, kind TimerKind, member string, at time.Time) error {
	return s.client.ZAdd(ctx, s.timerSetKey(kind), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: member,
	}).Err()
}

func (s *RedisStorage) ScheduleRetry(ctx context.Context, model saga.ModelID, tx saga.TransactionID, step saga.StepID, at time.Time, _ time.Duration) error {
	return s.scheduleTimer(ctx, TimerRetry, timerMember(model, tx, step), at)
}

func (s *RedisStorage) ScheduleStepTimeout(ctx context.Context, model saga.ModelID, tx saga.TransactionID, step saga.StepID, at time.Time, _ time.Duration) error {
	return s.scheduleTimer(ctx, TimerStepTimeout, timerMember(model, tx, step), at)
}

func (s *RedisStorage) ScheduleTransactionTimeout(ctx context.Context, model saga.ModelID, tx saga.TransactionID, at time.Time, _ time.Duration) error {
	return s.scheduleTimer(ctx, TimerTransactionTimeout, timerMember(model, tx, ""), at)
}

func (s *RedisStorage) ClearRetry(ctx context.Context, model saga.ModelID, tx saga.TransactionID, step saga.StepID) error {
	return s.client.ZRem(ctx, s.timerSetKey(TimerRetry), timerMember(model, tx, step)).Err()
}

func (s *RedisStorage) ClearStepTimeout(ctx context.Context, model saga.ModelID, tx saga.TransactionID, step saga.StepID) error {
	return s.client.ZRem(ctx, s.timerSetKey(TimerStepTimeout), timerMember(model, tx, step)).Err()
}

func (s *RedisStorage) ClearTransactionTimeout(ctx context.Context, model saga.ModelID, tx saga.TransactionID) error {
	return s.client.ZRem(ctx, s.timerSetKey(TimerTransactionTimeout), timerMember(model, tx, "")).Err()
}

// Lock acquires a SET NX PX token for (model, tx) and returns an Unlock
// that deletes it only if still held by this token (best-effort
// compare-and-delete; a false release after TTL expiry is tolerated
// since the lock's only job is to prevent two callers racing within the
// lease window, not to guarantee global serializability beyond it).
func (s *RedisStorage) Lock(ctx context.Context, model saga.ModelID, tx saga.TransactionID) (Unlock, error) {
	token := uuid.NewString()
	key := s.lockKey(model, tx)
	ok, err := s.client.SetNX(ctx, key, token, 30*time.Second).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func(ctx context.Context) error {
		cur, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		if cur != token {
			return ErrLockExpired
		}
		return s.client.Del(ctx, key).Err()
	}, nil
}

func (s *RedisStorage) Timers() <-chan TimerEvent {
	return s.events
}

func (s *RedisStorage) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
	close(s.events)
	return s.client.Close()
}

func (s *RedisStorage) poll(kind TimerKind) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	ctx := context.Background()
	key := s.timerSetKey(kind)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			nowMs := strconv.FormatInt(time.Now().UnixMilli(), 10)
			members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
				Min: "0", Max: nowMs,
			}).Result()
			if err != nil || len(members) == 0 {
				continue
			}
			s.client.ZRem(ctx, key, toAny(members)...)
			for _, m := range members {
				if ev, ok := parseTimerMember(kind, m); ok {
					select {
					case s.events <- ev:
					case <-s.stop:
						return
					}
				}
			}
		}
	}
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
