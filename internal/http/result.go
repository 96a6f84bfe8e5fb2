package httpapi

// Result 统一响应信封，前端 Axios 拦截器按 code 分流
// - code: 2000 成功
// - type: 'success' | 'error'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// 会话过期使用 code=60401 + HTTP 401（前端会跳转登录页）
	ResultSessionExpired = 60401
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

// OkMsg 无数据、只带提示文案的成功响应
func OkMsg(message string) Result[any] {
	return Result[any]{Code: ResultSuccess, Type: "success", Message: message, Result: nil}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}
