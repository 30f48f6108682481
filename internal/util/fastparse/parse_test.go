// Package fastparse 解析函数测试
package fastparse

import "testing"

func TestParseFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"100", 100, true},
		{"105.25", 105.25, true},
		{"-3e2", -300, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"+Inf", 0, false},
	}
	for _, c := range cases {
		got, err := ParseFloat(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("ParseFloat(%q) err=%v, want ok=%v", c.in, err, c.ok)
		}
		if c.ok && got != c.want {
			t.Fatalf("ParseFloat(%q)=%f, want %f", c.in, got, c.want)
		}
	}
}
