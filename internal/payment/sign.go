// Package payment 对接第三方支付网关：请求签名、回调验签与下单请求。
package payment

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// SignField 签名字段名，自身不参与签名。
const SignField = "sign"

// Sign 生成签名：字段名升序、跳过空值与 sign，拼成 k=v&k=v，
// 末尾追加 &key=secret 后取 MD5 小写十六进制。
func Sign(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == SignField || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
		b.WriteByte('&')
	}
	b.WriteString("key=")
	b.WriteString(secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify 重新计算签名并与 fields["sign"] 做常量时间比较。
func Verify(fields map[string]string, secret string) bool {
	got := strings.ToLower(fields[SignField])
	if got == "" {
		return false
	}
	want := Sign(fields, secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
