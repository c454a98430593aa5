package workflow

import (
	"net/http"
	"testing"
	"time"

	"github.com/mmdatafocus/pos_backend/config"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/mmdatafocus/pos_backend/utils"
)

func TestBeginClaim_FreshKeyIsNew(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("CASHIER", 1)

	result, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour)
	if err != nil {
		t.Fatalf("BeginClaim: %v", err)
	}
	if !result.IsNew || result.Replay != nil {
		t.Fatal("fresh key must yield a new claim")
	}
}

func TestBeginClaim_InProgressBlocksSecondCaller(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("CASHIER", 1)

	if _, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour); err != nil {
		t.Fatalf("BeginClaim: %v", err)
	}
	_, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour)
	if !utils.IsCode(err, utils.ErrCodeIdempotencyInProgress) {
		t.Fatalf("expected IDEMPOTENCY_IN_PROGRESS, got %v", err)
	}
}

func TestBeginClaim_DifferentHashConflicts(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("CASHIER", 1)

	if _, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour); err != nil {
		t.Fatalf("BeginClaim: %v", err)
	}
	_, err := BeginClaim(ctx, "k1", "order:create", "hash-b", time.Hour)
	if !utils.IsCode(err, utils.ErrCodeIdempotencyPayloadConflict) {
		t.Fatalf("expected IDEMPOTENCY_PAYLOAD_CONFLICT, got %v", err)
	}
}

func TestBeginClaim_CompletedClaimReplays(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("CASHIER", 1)

	if _, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour); err != nil {
		t.Fatalf("BeginClaim: %v", err)
	}
	if err := CompleteClaim(ctx, "k1", "order:create", http.StatusCreated, "42", `{"id":42}`); err != nil {
		t.Fatalf("CompleteClaim: %v", err)
	}

	result, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour)
	if err != nil {
		t.Fatalf("replay BeginClaim: %v", err)
	}
	if result.Replay == nil {
		t.Fatal("expected a replay")
	}
	if result.Replay.StatusCode != http.StatusCreated || result.Replay.ResourceId != "42" {
		t.Fatalf("replay = %+v", result.Replay)
	}
}

func TestBeginClaim_SameKeyDifferentScopeIsIndependent(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("CASHIER", 1)

	if _, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour); err != nil {
		t.Fatalf("BeginClaim scope 1: %v", err)
	}
	result, err := BeginClaim(ctx, "k1", "stock:adjust", "hash-a", time.Hour)
	if err != nil {
		t.Fatalf("BeginClaim scope 2: %v", err)
	}
	if !result.IsNew {
		t.Fatal("claims are scoped; another scope must not collide")
	}
}

func TestBeginClaim_ExpiredClaimIsReclaimed(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("CASHIER", 1)

	if _, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour); err != nil {
		t.Fatalf("BeginClaim: %v", err)
	}
	// Force the claim into the past.
	db := config.GetDB()
	if err := db.Model(&models.IdempotencyClaim{}).
		Where("claim_key = ?", "k1").
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("expire claim: %v", err)
	}

	result, err := BeginClaim(ctx, "k1", "order:create", "hash-b", time.Hour)
	if err != nil {
		t.Fatalf("reclaim BeginClaim: %v", err)
	}
	if !result.IsNew {
		t.Fatal("an expired claim must be reclaimable, even with a new payload")
	}
}

func TestClearClaim_AllowsRetryAfterFailure(t *testing.T) {
	setupTestDB(t)
	ctx := testContext("CASHIER", 1)

	if _, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour); err != nil {
		t.Fatalf("BeginClaim: %v", err)
	}
	if err := ClearClaim(ctx, "k1", "order:create"); err != nil {
		t.Fatalf("ClearClaim: %v", err)
	}
	result, err := BeginClaim(ctx, "k1", "order:create", "hash-a", time.Hour)
	if err != nil {
		t.Fatalf("BeginClaim after clear: %v", err)
	}
	if !result.IsNew {
		t.Fatal("cleared key must be claimable again")
	}
}
