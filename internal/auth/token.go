package auth

import (
	"fmt"
	"strings"
)

// Wildcard 通配段标记。只允许出现在末段。
const Wildcard = "*"

// Token 权限令牌的结构化表示。
// 外部存储格式（role_permission.permission 列、默认权限表）是冒号分隔的
// 字符串：`category:action` 或 `category:resource:action`，末段可以是 `*`。
// 该字符串格式是角色配置数据的兼容边界，序列化必须逐字节还原。
type Token struct {
	segs []string
}

// AllToken 全局通配 `*:*`
var AllToken = Token{segs: []string{Wildcard, Wildcard}}

// ParseToken 解析存储格式的权限串
// 合法形态：2 或 3 段；段非空；`*` 只允许作为末段
func ParseToken(s string) (Token, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Token{}, fmt.Errorf("empty permission token")
	}
	segs := strings.Split(s, ":")
	if len(segs) < 2 || len(segs) > 3 {
		return Token{}, fmt.Errorf("invalid permission token %q: want 2 or 3 segments", s)
	}
	for i, seg := range segs {
		if seg == "" {
			return Token{}, fmt.Errorf("invalid permission token %q: empty segment", s)
		}
		if seg == Wildcard && i != len(segs)-1 {
			// *:* 是唯一的例外：首段通配 + 末段通配
			if !(i == 0 && len(segs) == 2 && segs[1] == Wildcard) {
				return Token{}, fmt.Errorf("invalid permission token %q: wildcard must be the last segment", s)
			}
		}
	}
	return Token{segs: segs}, nil
}

// MustToken 解析常量令牌，非法时 panic（用于代码内写死的检查点）
func MustToken(s string) Token {
	t, err := ParseToken(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String 还原存储格式
func (t Token) String() string {
	return strings.Join(t.segs, ":")
}

// IsZero 零值令牌（解析失败时返回）
func (t Token) IsZero() bool {
	return len(t.segs) == 0
}

// IsGlobal 是否全局通配 *:*
func (t Token) IsGlobal() bool {
	return len(t.segs) == 2 && t.segs[0] == Wildcard && t.segs[1] == Wildcard
}

// Covers 判断授予令牌 t 是否覆盖请求令牌 req：
//   - *:* 覆盖一切
//   - 精确相等
//   - t 以 * 结尾时，* 之前的段是 req 的前缀
//     （resource:person:* 覆盖 resource:person:view；
//     resource:* 覆盖 resource:person:edit）
func (t Token) Covers(req Token) bool {
	if t.IsZero() || req.IsZero() {
		return false
	}
	if t.IsGlobal() {
		return true
	}
	last := len(t.segs) - 1
	if t.segs[last] != Wildcard {
		if len(t.segs) != len(req.segs) {
			return false
		}
		for i := range t.segs {
			if t.segs[i] != req.segs[i] {
				return false
			}
		}
		return true
	}
	// 通配：前缀段必须全部命中
	if len(req.segs) < last {
		return false
	}
	for i := 0; i < last; i++ {
		if t.segs[i] != req.segs[i] {
			return false
		}
	}
	return true
}
