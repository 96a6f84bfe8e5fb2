package httpapi

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// pathID 取 prefix 之后的数字 ID。`/api/v1/persons/12` → 12。
// 空、非数字、带多余子路径都返回 0。
func pathID(path, prefix string) int64 {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return 0
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// pathIDAction 取 `/prefix/{id}/{action}` 形态的 ID 和动作段
func pathIDAction(path, prefix string) (int64, string) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return 0, ""
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, ""
	}
	return id, parts[1]
}

func toNullStr(v string) sql.NullString {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// patch* 从部分更新请求体里取字段：键不存在 → 零值（不更新），
// 键存在 → Valid（null 按空值处理）
func patchStr(body map[string]any, key string) sql.NullString {
	raw, ok := body[key]
	if !ok {
		return sql.NullString{}
	}
	s, _ := raw.(string)
	return sql.NullString{String: s, Valid: true}
}

func patchBool(body map[string]any, key string) sql.NullBool {
	raw, ok := body[key]
	if !ok {
		return sql.NullBool{}
	}
	b, _ := raw.(bool)
	return sql.NullBool{Bool: b, Valid: true}
}

func patchInt(body map[string]any, key string) sql.NullInt64 {
	raw, ok := body[key]
	if !ok {
		return sql.NullInt64{}
	}
	// encoding/json 把数字解码成 float64
	f, _ := raw.(float64)
	return sql.NullInt64{Int64: int64(f), Valid: true}
}

func patchFloat(body map[string]any, key string) sql.NullFloat64 {
	raw, ok := body[key]
	if !ok {
		return sql.NullFloat64{}
	}
	f, _ := raw.(float64)
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nullStr(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

func nullInt(v sql.NullInt64) *int64 {
	if v.Valid {
		return &v.Int64
	}
	return nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if v.Valid {
		return &v.Float64
	}
	return nil
}
