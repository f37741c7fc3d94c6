package service

import "errors"

// Kind 错误大类，调用方按类别决定响应方式，而不是解析文案。
type Kind int

const (
	KindUnknown     Kind = iota
	KindInvalid          // 客户端输入错误
	KindExhausted        // 库存耗尽
	KindConfig           // 配置错误（支付方式缺失/停用）
	KindDependency       // 外部依赖失败（支付网关）
	KindIntegrity        // 完整性错误（回调找不到待支付订单等）
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindExhausted:
		return "exhausted"
	case KindConfig:
		return "config"
	case KindDependency:
		return "dependency"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Error 业务错误。Code 唯一标识错误，errors.Is 按 Code 比较。
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// withCause 复制一个哨兵错误并挂上底层原因。
func withCause(sentinel *Error, cause error) *Error {
	cp := *sentinel
	cp.Err = cause
	return &cp
}

// KindOf 返回 err 链上第一个业务错误的类别。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	ErrCommodityRequired = &Error{Kind: KindInvalid, Code: "COMMODITY_REQUIRED", Msg: "请选择商品再进行下单"}
	ErrQuantityInvalid   = &Error{Kind: KindInvalid, Code: "QUANTITY_INVALID", Msg: "最低购买数量为1~"}
	ErrCommodityNotFound = &Error{Kind: KindInvalid, Code: "COMMODITY_NOT_FOUND", Msg: "商品不存在"}
	ErrCommodityOffSale  = &Error{Kind: KindInvalid, Code: "COMMODITY_OFF_SALE", Msg: "当前商品已停售，请稍后再试"}
	ErrContactTooShort   = &Error{Kind: KindInvalid, Code: "CONTACT_TOO_SHORT", Msg: "联系方式不能低于4个字符"}
	ErrContactFormat     = &Error{Kind: KindInvalid, Code: "CONTACT_FORMAT_INVALID", Msg: "联系方式格式不正确"}

	ErrVoucherNotFound      = &Error{Kind: KindInvalid, Code: "VOUCHER_NOT_FOUND", Msg: "该优惠卷不存在或不属于该商品"}
	ErrVoucherAlreadyUsed   = &Error{Kind: KindInvalid, Code: "VOUCHER_ALREADY_USED", Msg: "该优惠卷已被使用过了"}
	ErrVoucherExceedsAmount = &Error{Kind: KindInvalid, Code: "VOUCHER_EXCEEDS_AMOUNT", Msg: "该优惠卷抵扣的金额大于本次消费，无法使用该优惠卷进行抵扣"}

	ErrFreeOrderQuantityExceeded = &Error{Kind: KindInvalid, Code: "FREE_ORDER_QUANTITY_EXCEEDED", Msg: "当前商品是免费商品，一次性最多领取1个"}

	ErrInsufficientStock = &Error{Kind: KindExhausted, Code: "INSUFFICIENT_STOCK", Msg: "当前商品库存不足，请稍后再试~"}
	ErrOutOfStock        = &Error{Kind: KindExhausted, Code: "OUT_OF_STOCK", Msg: "您的手慢了，商品被抢空"}

	ErrPayNotFound = &Error{Kind: KindConfig, Code: "PAY_NOT_FOUND", Msg: "该支付方式不存在"}
	ErrPayDisabled = &Error{Kind: KindConfig, Code: "PAY_DISABLED", Msg: "当前支付方式已停用，请换个支付方式再进行支付"}

	ErrGatewayRejected = &Error{Kind: KindDependency, Code: "PAYMENT_GATEWAY_REJECTED", Msg: "当前支付方式不可用，请换个支付方式再试！"}

	ErrOrderNotFound        = &Error{Kind: KindIntegrity, Code: "ORDER_NOT_FOUND", Msg: "order not found"}
	ErrOrderPasswordInvalid = &Error{Kind: KindInvalid, Code: "ORDER_PASSWORD_INVALID", Msg: "查询密码错误"}
)
