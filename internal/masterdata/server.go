package masterdata

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Source 是主数据服务的数据来源
type Source interface {
	EquipmentName(ctx context.Context, equipmentID int64) (*string, error)
}

// NewHandler 返回主数据服务的 HTTP 处理器
//
//	GET /equipment/{id} -> {"id": 11, "name": "NC-01"}
func NewHandler(src Source, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /equipment/{id}", func(w http.ResponseWriter, r *http.Request) {
		// 从 HTTP Header 中提取 Trace ID，用于链路追踪
		reqLogger := logger
		if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
			reqLogger = reqLogger.With("trace_id", traceID)
		}

		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid equipment id", http.StatusBadRequest)
			return
		}
		name, err := src.EquipmentName(r.Context(), id)
		if err != nil {
			reqLogger.Error("查询设备失败", "equipment_id", id, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if name == nil {
			http.NotFound(w, r)
			return
		}
		reqLogger.Debug("返回设备名称", "equipment_id", id)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Equipment{ID: id, Name: *name})
	})
	return mux
}
