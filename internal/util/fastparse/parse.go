// Package fastparse 提供热路径上的数值字符串解析。
// 价格与利润以十进制字符串传递，仅在比较或排序时临时转换。
package fastparse

import (
	"math"
	"strconv"
)

// ParseFloat 解析浮点数字符串
// NaN 与 ±Inf 视为无法解析，避免污染排序结果。
// 参数 s: 待解析的字符串，如 "1834.25"
// 返回: 解析后的浮点数和可能的错误
func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &strconv.NumError{Func: "ParseFloat", Num: s, Err: strconv.ErrSyntax}
	}
	return v, nil
}
