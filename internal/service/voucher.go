package service

import (
	"errors"
	"time"
	"unicode/utf8"

	"card_shop/internal/model"
	"card_shop/internal/repository"

	"github.com/shopspring/decimal"
)

// VoucherCodeLength 券码长度；长度不符视为未使用优惠券。
const VoucherCodeLength = 8

func voucherRequested(code string) bool {
	return utf8.RuneCountInString(code) == VoucherCodeLength
}

// checkVoucher 只读校验优惠券是否可用于 amount，不做任何写入。
func checkVoucher(r *repository.Repo, code string, commodityID uint, amount decimal.Decimal) (*model.Voucher, error) {
	v, err := r.FindVoucher(commodityID, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	if v.Status != model.VoucherUnused {
		return nil, ErrVoucherAlreadyUsed
	}
	if v.Money.GreaterThan(amount) {
		return nil, ErrVoucherExceedsAmount
	}
	return v, nil
}

// RedeemVoucher 在调用方事务内核销优惠券并返回抵扣金额与券 ID。
// 券码长度不是 8 时直接跳过，返回零抵扣。
// 核销以 status=unused 为条件更新，并发核销同一张券只有一个成功。
func RedeemVoucher(r *repository.Repo, code string, commodityID uint, amount decimal.Decimal, contact string, now time.Time) (decimal.Decimal, *uint, error) {
	if !voucherRequested(code) {
		return decimal.Zero, nil, nil
	}
	v, err := checkVoucher(r, code, commodityID, amount)
	if err != nil {
		return decimal.Zero, nil, err
	}
	ok, err := r.MarkVoucherUsed(v.ID, contact, now)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !ok {
		return decimal.Zero, nil, ErrVoucherAlreadyUsed
	}
	id := v.ID
	return v.Money, &id, nil
}

// discounted 返回扣减后的金额，下限为 0。
func discounted(amount, discount decimal.Decimal) decimal.Decimal {
	out := amount.Sub(discount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}
