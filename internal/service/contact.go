package service

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"card_shop/internal/model"
)

const minContactLength = 4

var contactRules = map[model.ContactType]struct {
	pattern *regexp.Regexp
	label   string
}{
	model.ContactPhone: {regexp.MustCompile(`^1[3456789]\d{9}$`), "手机"},
	model.ContactEmail: {regexp.MustCompile(`(?i).*(.{2}@.*)$`), "邮箱"},
	model.ContactQQ:    {regexp.MustCompile(`[1-9][0-9]{4,11}`), "QQ号"},
}

// checkContact 校验联系方式长度，以及商品要求的格式。
func checkContact(contact string, want model.ContactType) error {
	if utf8.RuneCountInString(contact) < minContactLength {
		return ErrContactTooShort
	}
	rule, ok := contactRules[want]
	if !ok {
		return nil
	}
	if !rule.pattern.MatchString(contact) {
		e := *ErrContactFormat
		e.Msg = fmt.Sprintf("您输入的%s格式不正确！", rule.label)
		return &e
	}
	return nil
}
