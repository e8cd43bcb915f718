package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const importLockKey = "catalog:import:lock"

// ImportLock admits one import job at a time. TryAcquire never waits: it
// returns ErrImportInProgress while another job holds the lock.
type ImportLock interface {
	TryAcquire(ctx context.Context) (release func(), err error)
}

// LocalImportLock serializes jobs within this process
type LocalImportLock struct {
	mu sync.Mutex
}

func NewLocalImportLock() *LocalImportLock {
	return &LocalImportLock{}
}

func (l *LocalImportLock) TryAcquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrImportInProgress
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// releaseScript deletes the lock only if the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out only if the caller still owns the lock
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisImportLock serializes jobs across replicas. The holder renews the key
// every ttl/3 while the job runs, so only a crashed holder lets it expire.
// When Redis is unreachable it degrades to a process-local lock.
type RedisImportLock struct {
	client   *redis.Client
	key      string
	ttl      time.Duration
	fallback *LocalImportLock
	logger   *logrus.Entry
}

func NewRedisImportLock(client *redis.Client, ttl time.Duration, logger *logrus.Entry) *RedisImportLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RedisImportLock{
		client:   client,
		key:      importLockKey,
		ttl:      ttl,
		fallback: NewLocalImportLock(),
		logger:   logger.WithField("component", "import-lock"),
	}
}

func (l *RedisImportLock) TryAcquire(ctx context.Context) (func(), error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		l.logger.WithError(err).Warn("Redis unavailable for import lock, using local lock")
		return l.fallback.TryAcquire(ctx)
	}
	if !ok {
		return nil, ErrImportInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done

			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
				l.logger.WithError(err).Warn("Failed to release import lock; it will expire")
			}
		})
	}
	return release, nil
}

// keepAlive extends the lock every ttl/3 until stop is closed or ownership
// is lost
func (l *RedisImportLock) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			renewCtx, cancel := context.WithTimeout(context.Background(), interval)
			renewed, err := renewScript.Run(renewCtx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				l.logger.WithError(err).Warn("Failed to renew import lock")
				continue
			}
			if renewed == 0 {
				l.logger.Warn("Import lock lost before the job finished")
				return
			}
		}
	}
}
