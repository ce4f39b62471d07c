package service

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewOrderCode 订单号：yyyyMMddHHmmss + 8 位随机十六进制
func NewOrderCode(now time.Time) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return now.Format("20060102150405") + hex.EncodeToString(buf), nil
}
