package trip

import (
	"encoding/json"
	"errors"
	"net/http"

	"trip-planner/internal/orchestrator"
	"trip-planner/internal/shared/model"
)

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// writeJSON 写入 JSON 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError 写入错误响应
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError 按错误类型选择状态码
//   - ValidationError: 400，附带字段名
//   - ErrTaskNotFound: 404
//   - ErrPoolSaturated: 503
//   - 其他: 500
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": ve.Error(),
			"field": ve.Field,
		})
	case errors.Is(err, model.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, model.ErrTaskNotFound.Error())
	case errors.Is(err, orchestrator.ErrPoolSaturated):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodePayload 解析请求体
func decodePayload(w http.ResponseWriter, r *http.Request) (model.TripRequestPayload, bool) {
	var payload model.TripRequestPayload
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return payload, false
	}
	return payload, true
}
