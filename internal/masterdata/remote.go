package masterdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"factory-scheduler/internal/util"
)

// Equipment 是主数据服务返回的设备信息
type Equipment struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RemoteDirectory 是通过 HTTP 调用的远程主数据客户端
// 它实现了 engine.EquipmentNameLookup，使得排程结果可以使用中心化的设备名称
type RemoteDirectory struct {
	Endpoint string       // 远程服务的地址 (e.g., http://localhost:8081)
	Client   *http.Client // HTTP 客户端
	logger   *slog.Logger
}

// NewRemoteDirectory 创建一个新的远程主数据客户端
func NewRemoteDirectory(endpoint string, timeout time.Duration, logger *slog.Logger) *RemoteDirectory {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteDirectory{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "masterdata", "remote", true),
	}
}

// EquipmentName 通过 GET /equipment/{id} 查询设备名称
// 设备不存在 (404) 时返回 nil，其他失败返回错误
func (d *RemoteDirectory) EquipmentName(ctx context.Context, equipmentID int64) (*string, error) {
	logger := d.logger.With("equipment_id", equipmentID)
	traceID, hasTrace := util.TraceIDFromContext(ctx)
	if hasTrace {
		logger = logger.With("trace_id", traceID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.Endpoint+"/equipment/"+strconv.FormatInt(equipmentID, 10), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	// 将 Trace ID 放入 HTTP Header 中，实现跨服务追踪
	if hasTrace {
		httpReq.Header.Set("X-Trace-ID", traceID)
	}

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		logger.Error("远程调用失败", "error", err)
		return nil, fmt.Errorf("远程调用失败: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		logger.Error("远程服务返回错误状态", "status", resp.Status)
		return nil, fmt.Errorf("远程服务错误: %s", resp.Status)
	}

	var eq Equipment
	if err := json.NewDecoder(resp.Body).Decode(&eq); err != nil {
		logger.Error("解析远程响应失败", "error", err)
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return &eq.Name, nil
}
