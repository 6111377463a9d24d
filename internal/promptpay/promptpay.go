// Package promptpay 生成 PromptPay (EMVCo) 二维码载荷字符串。
package promptpay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTarget = errors.New("promptpay: identifier must be a phone number, tax ID or e-wallet ID")
	ErrInvalidAmount = errors.New("promptpay: amount must not be negative")
)

const (
	idPayloadFormat     = "00"
	idPOIMethod         = "01"
	idMerchantPromptPay = "29"
	idCountryCode       = "58"
	idCurrency          = "53"
	idAmount            = "54"
	idCRC               = "63"

	payloadFormatEMV = "01"
	poiStatic        = "11"
	poiDynamic       = "12"

	aidPromptPay = "A000000677010111"
	proxyPhone   = "01"
	proxyTaxID   = "02"
	proxyEWallet = "03"

	countryTH = "TH"
	currTHB   = "764"
)

// Generate 生成载荷。amount 无效(Valid=false)时生成静态码，否则为动态码并带两位小数金额。
// 同样的 (target, amount) 永远得到同样的结果。
func Generate(target string, amount decimal.NullDecimal) (string, error) {
	proxyType, proxyValue, err := normalizeTarget(target)
	if err != nil {
		return "", err
	}

	poi := poiStatic
	if amount.Valid {
		if amount.Decimal.IsNegative() {
			return "", ErrInvalidAmount
		}
		poi = poiDynamic
	}

	var b strings.Builder
	b.WriteString(tlv(idPayloadFormat, payloadFormatEMV))
	b.WriteString(tlv(idPOIMethod, poi))
	b.WriteString(tlv(idMerchantPromptPay, tlv("00", aidPromptPay)+tlv(proxyType, proxyValue)))
	b.WriteString(tlv(idCountryCode, countryTH))
	b.WriteString(tlv(idCurrency, currTHB))
	if amount.Valid {
		b.WriteString(tlv(idAmount, amount.Decimal.StringFixed(2)))
	}
	b.WriteString(idCRC + "04")
	b.WriteString(fmt.Sprintf("%04X", CRC16([]byte(b.String()))))
	return b.String(), nil
}

// normalizeTarget 只保留数字，并按长度判断代理类型
func normalizeTarget(target string) (string, string, error) {
	var digits strings.Builder
	for _, r := range target {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10 && d[0] == '0':
		// 0812345678 -> 0066812345678
		return proxyPhone, "0066" + d[1:], nil
	case len(d) == 11 && strings.HasPrefix(d, "66"):
		return proxyPhone, "00" + d, nil
	case len(d) == 13:
		return proxyTaxID, d, nil
	case len(d) == 15:
		return proxyEWallet, d, nil
	}
	return "", "", ErrInvalidTarget
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// CRC16 CRC-16/CCITT-FALSE：多项式 0x1021，初始值 0xFFFF，不反转，无最终异或
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, c := range data {
		crc ^= uint16(c) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
