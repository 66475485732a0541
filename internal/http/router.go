package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// healthTimeout 单次健康检查中所有组件检查的时长上限
const healthTimeout = 2 * time.Second

// Router 路由表；方法不匹配的请求由 methodOnly 拒绝并记日志
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterTileRoutes 页面 + 磁贴 API
func (r *Router) RegisterTileRoutes(h *TileHandler) {
	// "/" 兜底所有页面路径：/、/tile 以及其他路径（默认面板）
	r.Handle("/", r.methodOnly(http.MethodGet, h.Page))

	r.Handle("/api/v1/tile/state", r.methodOnly(http.MethodGet, h.State))
	r.Handle("/api/v1/tile/patient", r.methodOnly(http.MethodPost, h.PushPatient))
	r.Handle("/api/v1/tile/sessions", r.methodOnly(http.MethodGet, h.Sessions))
	r.Handle("/api/v1/tile/history", r.methodOnly(http.MethodGet, h.History))
}

// HealthCheck 一个依赖组件的连通性检查
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// RegisterHealthRoutes /healthz：任一组件失败返回 503 + degraded
func (r *Router) RegisterHealthRoutes(checks ...HealthCheck) {
	r.Handle("/healthz", r.methodOnly(http.MethodGet, func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		if len(checks) > 0 {
			resp.Components = make(map[string]string, len(checks))
		}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Status = "degraded"
				resp.Components[c.Name] = err.Error()
				r.logger.Warn("Health check failed", zap.String("component", c.Name), zap.Error(err))
				continue
			}
			resp.Components[c.Name] = "ok"
		}

		if resp.Status != "ok" {
			writeJSON(w, http.StatusServiceUnavailable, FailWith(resp.Status, resp))
			return
		}
		writeJSON(w, http.StatusOK, Ok(resp))
	}))
}

func (r *Router) methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			r.logger.Debug("Method not allowed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("allowed", method),
			)
			w.Header().Set("Allow", method)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}
