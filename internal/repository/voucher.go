package repository

import (
	"time"

	"card_shop/internal/model"
)

// FindVoucher 按商品与券码查询优惠券。
func (r *Repo) FindVoucher(commodityID uint, code string) (*model.Voucher, error) {
	var v model.Voucher
	err := r.db.Where("commodity_id = ? AND code = ?", commodityID, code).First(&v).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &v, nil
}

// MarkVoucherUsed 以 status=unused 为条件核销优惠券，返回是否抢到核销权。
func (r *Repo) MarkVoucherUsed(id uint, contact string, at time.Time) (bool, error) {
	res := r.db.Model(&model.Voucher{}).
		Where("id = ? AND status = ?", id, model.VoucherUnused).
		Updates(map[string]any{
			"status":   model.VoucherUsed,
			"contact":  contact,
			"use_date": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
