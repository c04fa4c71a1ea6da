package providers

// Settings 是外部注入的可选配置对象。查找顺序为
// "<scope>.<key>" → "<key>" → 未命中。nil 的 Settings 上
// 任何查找都视为未命中。
type Settings map[string]interface{}

// Lookup 按作用域前缀做两级查找
func (s Settings) Lookup(scope, key string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	if v, ok := s[scope+"."+key]; ok {
		return v, true
	}
	if v, ok := s[key]; ok {
		return v, true
	}
	return nil, false
}

// LookupString 查找字符串设置，未命中或类型不符时返回默认值
func (s Settings) LookupString(scope, key, def string) string {
	v, ok := s.Lookup(scope, key)
	if !ok {
		return def
	}
	str, ok := v.(string)
	if !ok {
		return def
	}
	return str
}

// LookupFloat 查找浮点设置，未命中或类型不符时返回默认值
func (s Settings) LookupFloat(scope, key string, def float64) float64 {
	v, ok := s.Lookup(scope, key)
	if !ok {
		return def
	}
	switch f := v.(type) {
	case float64:
		return f
	case float32:
		return float64(f)
	case int:
		return float64(f)
	default:
		return def
	}
}

// LookupStrings 查找字符串切片设置，未命中或类型不符时返回默认值
func (s Settings) LookupStrings(scope, key string, def []string) []string {
	v, ok := s.Lookup(scope, key)
	if !ok {
		return def
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			str, ok := item.(string)
			if !ok {
				return def
			}
			out = append(out, str)
		}
		return out
	default:
		return def
	}
}
