package util

import (
	"reflect"
	"strings"
)

// IsNil 檢查介面是否為 nil
// 注意：介面本身非 nil 但內含 nil 指標時，同樣回傳 true
func IsNil(i any) bool {
	if i == nil {
		return true
	}

	switch reflect.TypeOf(i).Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Slice, reflect.Func, reflect.Interface:
		return reflect.ValueOf(i).IsNil()
	}

	return false
}

// MustNotNil 建構子依賴檢查，缺少依賴直接 panic
func MustNotNil(component string, deps map[string]any) {
	for name, dep := range deps {
		if IsNil(dep) {
			panic(component + " dependency " + name + " is nil")
		}
	}
}

// SplitCSV 切分逗號分隔字串，忽略空白項目
func SplitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
