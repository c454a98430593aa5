package workflow

import (
	"context"
	"errors"
	"net/http"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
	"gorm.io/gorm"
)

// DefaultClaimTTL bounds how long a claim blocks reuse of its key. Completed
// claims get the same extension so replays stay available to late retries.
const DefaultClaimTTL = 24 * time.Hour

// ReplayResponse is the stored outcome of a completed claim, replayed
// verbatim to retried requests.
type ReplayResponse struct {
	StatusCode int    `json:"status_code"`
	ResourceId string `json:"resource_id"`
	Body       string `json:"body"`
}

// ClaimResult reports whether the caller owns a fresh claim or must replay.
type ClaimResult struct {
	IsNew  bool
	Replay *ReplayResponse
}

// cachedClaim mirrors a completed claim in redis so hot retries replay
// without touching the claims table. The table stays the source of truth;
// the cache is dropped whenever the claim is cleared.
type cachedClaim struct {
	RequestHash string          `json:"request_hash"`
	Replay      *ReplayResponse `json:"replay"`
}

func claimCacheKey(key, scope string) string {
	return "idempotency:" + scope + ":" + key
}

func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginClaim inserts an IN_PROGRESS claim for (key, scope). If a live claim
// already exists: a different payload hash is a conflict, a completed claim
// replays its stored response, and an unfinished claim reports in-progress.
// Expired claims are reclaimed in place.
func BeginClaim(ctx context.Context, key, scope, payloadHash string, ttl time.Duration) (*ClaimResult, error) {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	db := config.GetDB()
	now := time.Now().UTC()

	var cached cachedClaim
	if hit, err := config.GetRedisObject(claimCacheKey(key, scope), &cached); err == nil && hit && cached.Replay != nil {
		if cached.RequestHash != payloadHash {
			return nil, utils.NewAppError(utils.ErrCodeIdempotencyPayloadConflict, http.StatusConflict,
				"idempotency key was already used with a different payload")
		}
		return &ClaimResult{Replay: cached.Replay}, nil
	}

	claim := models.IdempotencyClaim{
		ClaimKey:    key,
		Scope:       scope,
		RequestHash: payloadHash,
		Status:      models.IdempotencyStatusInProgress,
		ExpiresAt:   now.Add(ttl),
	}
	err := db.WithContext(ctx).Create(&claim).Error
	if err == nil {
		return &ClaimResult{IsNew: true}, nil
	}
	if !isDuplicateKeyErr(err) {
		return nil, err
	}

	var existing models.IdempotencyClaim
	if err := db.WithContext(ctx).
		Where("claim_key = ? AND scope = ?", key, scope).
		First(&existing).Error; err != nil {
		return nil, err
	}

	// A dead claim no longer guards anything; the retry takes it over.
	if existing.ExpiresAt.Before(now) {
		err := db.WithContext(ctx).Model(&models.IdempotencyClaim{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"request_hash":  payloadHash,
				"status":        models.IdempotencyStatusInProgress,
				"status_code":   0,
				"resource_id":   "",
				"response_body": nil,
				"expires_at":    now.Add(ttl),
			}).Error
		if err != nil {
			return nil, err
		}
		return &ClaimResult{IsNew: true}, nil
	}

	if existing.RequestHash != payloadHash {
		return nil, utils.NewAppError(utils.ErrCodeIdempotencyPayloadConflict, http.StatusConflict,
			"idempotency key was already used with a different payload")
	}

	if existing.Status == models.IdempotencyStatusCompleted && existing.ResponseBody != nil {
		return &ClaimResult{
			Replay: &ReplayResponse{
				StatusCode: existing.StatusCode,
				ResourceId: existing.ResourceId,
				Body:       *existing.ResponseBody,
			},
		}, nil
	}

	// First attempt has not finished (or crashed without clearing); the
	// caller retries after it completes or the claim is cleared.
	return nil, utils.NewAppError(utils.ErrCodeIdempotencyInProgress, http.StatusConflict,
		"a request with this idempotency key is still in progress")
}

// CompleteClaim stores the response to replay and extends the expiry.
func CompleteClaim(ctx context.Context, key, scope string, statusCode int, resourceId, responseBody string) error {
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&models.IdempotencyClaim{}).
		Where("claim_key = ? AND scope = ?", key, scope).
		Updates(map[string]interface{}{
			"status":        models.IdempotencyStatusCompleted,
			"status_code":   statusCode,
			"resource_id":   resourceId,
			"response_body": &responseBody,
			"expires_at":    time.Now().UTC().Add(DefaultClaimTTL),
		}).Error
	if err != nil {
		return err
	}

	var claim models.IdempotencyClaim
	if err := db.WithContext(ctx).
		Where("claim_key = ? AND scope = ?", key, scope).
		First(&claim).Error; err == nil {
		// Cache lifetime matches the claim's expiry so the two cannot disagree
		// about whether a replay is still available.
		_ = config.SetRedisObject(claimCacheKey(key, scope), cachedClaim{
			RequestHash: claim.RequestHash,
			Replay: &ReplayResponse{
				StatusCode: statusCode,
				ResourceId: resourceId,
				Body:       responseBody,
			},
		}, DefaultClaimTTL)
	}
	return nil
}

// ClearClaim removes the claim on any failure path so a failed attempt does
// not permanently block retries of the same key.
func ClearClaim(ctx context.Context, key, scope string) error {
	_ = config.RemoveRedisKey(claimCacheKey(key, scope))
	db := config.GetDB()
	return db.WithContext(ctx).
		Where("claim_key = ? AND scope = ?", key, scope).
		Delete(&models.IdempotencyClaim{}).Error
}
