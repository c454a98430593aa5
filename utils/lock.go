package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/pos_backend/config"
)

// BranchLock serializes hot branch-scoped sections (sequence allocation,
// production starts) across instances. The Redis lock is a best-effort
// optimization: correctness must not depend on it, so a missing locker is a
// no-op rather than a failure.
func BranchLock(ctx context.Context, branchId int, lockType string) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}

	lockKey := fmt.Sprintf("%s:%d", lockType, branchId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		return nil, fmt.Errorf("could not obtain %s lock for branch %d", lockType, branchId)
	} else if err != nil {
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
