package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/quickbite/internal/constants"
	"github.com/quickbite/internal/models"
)

func createTestVoucher(t *testing.T, repo *GormVoucherRepository, usageLimit, userLimit *int) *models.Voucher {
	t.Helper()
	now := time.Now()
	voucher := &models.Voucher{
		StoreID:       1,
		Code:          "SAVE10",
		DiscountType:  constants.VoucherTypeFixed,
		DiscountValue: models.NewMoneyFromInt(10000),
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		UsageLimit:    usageLimit,
		UserLimit:     userLimit,
		IsActive:      true,
	}
	if err := repo.Create(voucher); err != nil {
		t.Fatalf("create voucher failed: %v", err)
	}
	return voucher
}

func TestVoucherRepositoryRedeemOnceRespectsUsageLimit(t *testing.T) {
	db := setupRepositoryTestDB(t, "voucher_repo_usage")
	repo := NewVoucherRepository(db)
	limit := 1
	voucher := createTestVoucher(t, repo, &limit, nil)

	ok, err := repo.RedeemOnce(voucher.ID)
	if err != nil || !ok {
		t.Fatalf("first redeem should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = repo.RedeemOnce(voucher.ID)
	if err != nil {
		t.Fatalf("second redeem failed: %v", err)
	}
	if ok {
		t.Fatalf("second redeem should be rejected by usage limit")
	}

	reloaded, err := repo.GetByID(voucher.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload voucher failed: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("used count want 1 got %d", reloaded.UsedCount)
	}
}

func TestVoucherRepositoryRedeemOnceUnlimited(t *testing.T) {
	db := setupRepositoryTestDB(t, "voucher_repo_unlimited")
	repo := NewVoucherRepository(db)
	voucher := createTestVoucher(t, repo, nil, nil)

	for i := 0; i < 3; i++ {
		ok, err := repo.RedeemOnce(voucher.ID)
		if err != nil || !ok {
			t.Fatalf("redeem %d should succeed, ok=%v err=%v", i, ok, err)
		}
	}
}

func TestVoucherRepositoryRedeemForUserRespectsUserLimit(t *testing.T) {
	db := setupRepositoryTestDB(t, "voucher_repo_user_limit")
	repo := NewVoucherRepository(db)
	userLimit := 1
	voucher := createTestVoucher(t, repo, nil, &userLimit)

	ok, err := repo.RedeemForUser(voucher.ID, 42, voucher.UserLimit)
	if err != nil || !ok {
		t.Fatalf("first user redeem should succeed, ok=%v err=%v", ok, err)
	}
	ok, err = repo.RedeemForUser(voucher.ID, 42, voucher.UserLimit)
	if err != nil {
		t.Fatalf("second user redeem failed: %v", err)
	}
	if ok {
		t.Fatalf("second user redeem should be rejected")
	}
	ok, err = repo.RedeemForUser(voucher.ID, 43, voucher.UserLimit)
	if err != nil || !ok {
		t.Fatalf("other user redeem should succeed, ok=%v err=%v", ok, err)
	}

	usage, err := repo.GetUsage(voucher.ID, 42)
	if err != nil || usage == nil {
		t.Fatalf("get usage failed: %v", err)
	}
	if usage.UsedCount != 1 {
		t.Fatalf("user used count want 1 got %d", usage.UsedCount)
	}
}

func TestVoucherRepositoryRedeemOnceConcurrentSingleWinner(t *testing.T) {
	db := setupRepositoryTestDB(t, "voucher_repo_concurrent")
	repo := NewVoucherRepository(db)
	limit := 1
	voucher := createTestVoucher(t, repo, &limit, nil)

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.RedeemOnce(voucher.ID)
			if err != nil {
				errs <- err
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		t.Fatalf("redeem failed: %v", err)
	}
	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("exactly one redeem should win, got %d", winners)
	}
	reloaded, err := repo.GetByID(voucher.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload voucher failed: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("used count want 1 got %d", reloaded.UsedCount)
	}
}

func TestVoucherRepositoryListUsableByStore(t *testing.T) {
	db := setupRepositoryTestDB(t, "voucher_repo_usable")
	repo := NewVoucherRepository(db)
	now := time.Now()
	limit := 1
	newVoucher := func(storeID uint, code string, usageLimit *int) *models.Voucher {
		voucher := &models.Voucher{
			StoreID:       storeID,
			Code:          code,
			DiscountType:  constants.VoucherTypeFixed,
			DiscountValue: models.NewMoneyFromInt(10000),
			StartDate:     now.Add(-time.Hour),
			EndDate:       now.Add(time.Hour),
			UsageLimit:    usageLimit,
			IsActive:      true,
		}
		if err := repo.Create(voucher); err != nil {
			t.Fatalf("create voucher %s failed: %v", code, err)
		}
		return voucher
	}
	usable := newVoucher(1, "USABLE", nil)
	exhausted := newVoucher(1, "EXHAUSTED", &limit)
	if ok, err := repo.RedeemOnce(exhausted.ID); err != nil || !ok {
		t.Fatalf("redeem failed: ok=%v err=%v", ok, err)
	}
	expired := newVoucher(1, "EXPIRED", nil)
	if err := db.Model(&models.Voucher{}).Where("id = ?", expired.ID).
		Update("end_date", now.Add(-time.Minute)).Error; err != nil {
		t.Fatalf("expire voucher failed: %v", err)
	}
	inactive := newVoucher(1, "INACTIVE", nil)
	if err := db.Model(&models.Voucher{}).Where("id = ?", inactive.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate voucher failed: %v", err)
	}
	newVoucher(2, "OTHER", nil)

	vouchers, err := repo.ListUsableByStore(1, now)
	if err != nil {
		t.Fatalf("list usable failed: %v", err)
	}
	if len(vouchers) != 1 || vouchers[0].ID != usable.ID {
		t.Fatalf("expected only voucher %d, got %+v", usable.ID, vouchers)
	}
}
