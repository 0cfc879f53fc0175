package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"factory-scheduler/internal/calendar"
	"factory-scheduler/internal/engine"
	"factory-scheduler/internal/order"
	"factory-scheduler/internal/types"
	"factory-scheduler/internal/util"
)

// OrderService 是 API 依赖的订单服务
type OrderService interface {
	Simulate(ctx context.Context, req order.SimulateRequest) (*types.SimulationResult, error)
	SimulateOrder(ctx context.Context, tenantID string, orderID int64) (*types.SimulationResult, error)
	Confirm(ctx context.Context, tenantID string, orderID int64) (*order.ConfirmResult, error)
	CreateOrder(ctx context.Context, o types.Order) (types.Order, error)
	GetOrder(ctx context.Context, tenantID string, orderID int64) (*types.Order, error)
	ConfirmRequestFor(ctx context.Context, tenantID string, orderID int64) (types.ConfirmRequest, error)
	SchedulesInPeriod(ctx context.Context, startDate, endDate string, groupID *int64) ([]types.ScheduleView, error)
}

// ConfirmQueue 接收批量确定请求
type ConfirmQueue interface {
	SubmitConfirm(req types.ConfirmRequest) error
}

// API 汇总 HTTP 接口的依赖
type API struct {
	Orders        OrderService
	Queue         ConfirmQueue
	Board         *Board
	Hub           *Hub
	DefaultTenant string
	Logger        *slog.Logger
}

type simulateBody struct {
	ProductID    int64      `json:"product_id"`
	Quantity     int        `json:"quantity"`
	Start        *time.Time `json:"start,omitempty"`
	DeadlineDate string     `json:"deadline_date,omitempty"`
}

type createOrderBody struct {
	ProductID       int64  `json:"product_id"`
	Quantity        int    `json:"quantity"`
	DesiredDeadline string `json:"desired_deadline,omitempty"`
}

type confirmBatchBody struct {
	OrderIDs []int64 `json:"order_ids"`
}

type rejectedOrder struct {
	OrderID int64  `json:"order_id"`
	Error   string `json:"error"`
}

type tenantKey struct{}

// Handler 返回注册了全部路由的 HTTP 处理器
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", a.Hub.ServeWs(func() any { return a.Board.Snapshot() }))

	mux.HandleFunc("POST /api/simulate", a.simulate)
	mux.HandleFunc("POST /api/orders", a.createOrder)
	mux.HandleFunc("GET /api/orders/{id}", a.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/simulate", a.simulateOrder)
	mux.HandleFunc("POST /api/orders/{id}/confirm", a.confirmOrder)
	mux.HandleFunc("POST /api/orders/confirm-batch", a.confirmBatch)
	mux.HandleFunc("GET /api/schedules", a.schedules)
	mux.HandleFunc("GET /api/board", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.Board.Snapshot())
	})
	return a.middleware(mux)
}

// statusRecorder 记录响应状态码，用于访问日志
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack 供 websocket 升级使用
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// middleware 注入 Trace ID 和租户，并记录访问日志
func (a *API) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = util.NewTraceID()
		}
		tenantID := r.Header.Get("X-Tenant-ID")
		if tenantID == "" {
			tenantID = a.DefaultTenant
		}
		ctx := util.ContextWithTraceID(r.Context(), traceID)
		ctx = context.WithValue(ctx, tenantKey{}, tenantID)
		w.Header().Set("X-Trace-ID", traceID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		a.Logger.Info("请求完成", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"tenant_id", tenantID, "trace_id", traceID, "elapsed_ms", time.Since(began).Milliseconds())
	})
}

func tenantFrom(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantKey{}).(string)
	return tenantID
}

func (a *API) simulate(w http.ResponseWriter, r *http.Request) {
	var body simulateBody
	if !decode(w, r, &body) {
		return
	}
	result, err := a.Orders.Simulate(r.Context(), order.SimulateRequest{
		ProductID:    body.ProductID,
		Quantity:     body.Quantity,
		TenantID:     tenantFrom(r.Context()),
		Start:        body.Start,
		DeadlineDate: body.DeadlineDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderBody
	if !decode(w, r, &body) {
		return
	}
	o, err := a.Orders.CreateOrder(r.Context(), types.Order{
		TenantID:        tenantFrom(r.Context()),
		ProductID:       body.ProductID,
		Quantity:        body.Quantity,
		DesiredDeadline: body.DesiredDeadline,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := a.Orders.GetOrder(r.Context(), tenantFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) simulateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := a.Orders.SimulateOrder(r.Context(), tenantFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := a.Orders.Confirm(r.Context(), tenantFrom(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) confirmBatch(w http.ResponseWriter, r *http.Request) {
	var body confirmBatchBody
	if !decode(w, r, &body) {
		return
	}
	if len(body.OrderIDs) == 0 {
		writeDetail(w, http.StatusBadRequest, "order_ids is required")
		return
	}

	tenantID := tenantFrom(r.Context())
	queued := make([]int64, 0, len(body.OrderIDs))
	rejected := make([]rejectedOrder, 0)
	for _, id := range body.OrderIDs {
		req, err := a.Orders.ConfirmRequestFor(r.Context(), tenantID, id)
		if err == nil {
			err = a.Queue.SubmitConfirm(req)
		}
		if err != nil {
			rejected = append(rejected, rejectedOrder{OrderID: id, Error: err.Error()})
			continue
		}
		queued = append(queued, id)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": queued, "rejected": rejected})
}

func (a *API) schedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var groupID *int64
	if raw := q.Get("equipment_group_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "invalid equipment_group_id")
			return
		}
		groupID = &id
	}
	views, err := a.Orders.SchedulesInPeriod(r.Context(), q.Get("start_date"), q.Get("end_date"), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// statusFor 将领域错误映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrAlreadyQueued):
		return http.StatusConflict
	case errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidPeriod),
		errors.Is(err, engine.ErrNoStepsFound),
		errors.Is(err, engine.ErrNoEquipmentInGroup),
		errors.Is(err, engine.ErrEmptySchedule),
		errors.Is(err, engine.ErrInvalidRule),
		errors.Is(err, calendar.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeDetail(w, statusFor(err), err.Error())
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
