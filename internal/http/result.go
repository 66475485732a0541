package httpapi

// 响应码：与前端约定 2000 成功，-1 失败
const (
	ResultSuccess = 2000
	ResultError   = -1
)

// Result API 统一响应体 {code, type, message, result}
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

// Fail 失败且无附加数据
func Fail(message string) Result[any] {
	return FailWith[any](message, nil)
}

// FailWith 失败但仍携带数据（如健康检查的组件明细）
func FailWith[T any](message string, result T) Result[T] {
	return Result[T]{Code: ResultError, Type: "error", Message: message, Result: result}
}
