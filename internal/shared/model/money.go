package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money 金额，以最小货币单位（美分）存储
//
// 所有费用计算都在整数上完成，保证分类合计与总额精确相等。
// JSON 编码为保留两位小数的数字，如 1500.00。
type Money int64

// Dollars 以整数美元构造金额
func Dollars(d int64) Money {
	return Money(d * 100)
}

// FromFloat 将浮点金额四舍五入到分
func FromFloat(f float64) Money {
	return Money(math.Round(f * 100))
}

// ParseMoney 解析十进制金额字符串
//
// 支持 "1500"、"1500.5"、"-12.345"、"1.5e3" 等形式，超过两位的小数四舍五入（远离零）。
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		return FromFloat(f), nil
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for _, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}

	// 补齐到三位：前两位为分，第三位决定进位
	padded := (fracPart + "000")[:3]
	cents, _ := strconv.ParseInt(padded[:2], 10, 64)
	if padded[2] >= '5' {
		cents++
	}
	if units > (math.MaxInt64-cents)/100 {
		return 0, fmt.Errorf("amount %q out of range", s)
	}

	m := Money(units*100 + cents)
	if neg {
		m = -m
	}
	return m, nil
}

// Cents 返回分值
func (m Money) Cents() int64 {
	return int64(m)
}

// Float 返回浮点美元值，仅用于展示
func (m Money) Float() float64 {
	return float64(m) / 100
}

// MulInt 乘以整数
func (m Money) MulInt(n int) Money {
	return m * Money(n)
}

// MulRatio 按比例缩放，结果四舍五入到分
func (m Money) MulRatio(r float64) Money {
	return Money(math.Round(float64(m) * r))
}

// String 格式化为 "1234.50"
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON 编码为 JSON 数字
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON 支持 JSON 数字和数字字符串
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SumMoney 求和
func SumMoney(values ...Money) Money {
	var total Money
	for _, v := range values {
		total += v
	}
	return total
}
