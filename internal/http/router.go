package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux，外层套上请求 ID、日志、恢复与 CORS 中间件
type Router struct {
	mux     *http.ServeMux
	logger  *zap.Logger
	handler http.Handler
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
	r.handler = withRequestID(withAccessLog(withRecover(withCORS(r.mux), logger), logger))
	return r
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// methods 按方法分派，其余方法返回 405
func methods(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		h, ok := handlers[req.Method]
		if !ok {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterPostureRoutes 注册遥测、导出与告警路由
func (r *Router) RegisterPostureRoutes(h *PostureHandler) {
	r.Handle("/update", methods(map[string]http.HandlerFunc{http.MethodPost: h.Update}))
	r.Handle("/data", methods(map[string]http.HandlerFunc{http.MethodGet: h.Latest}))
	r.Handle("/history", methods(map[string]http.HandlerFunc{http.MethodGet: h.History}))
	r.Handle("/download.csv", methods(map[string]http.HandlerFunc{http.MethodGet: h.DownloadCSV}))
	r.Handle("/download.xlsx", methods(map[string]http.HandlerFunc{http.MethodGet: h.DownloadXLSX}))

	r.Handle("/alert", methods(map[string]http.HandlerFunc{
		http.MethodGet:    h.CheckAlert,
		http.MethodPost:   h.RaiseAlert,
		http.MethodDelete: h.AcknowledgeAlert,
	}))
	r.Handle("/alert/ack", methods(map[string]http.HandlerFunc{http.MethodPost: h.AcknowledgeAlert}))

	r.Handle("/stats", methods(map[string]http.HandlerFunc{http.MethodGet: h.Stats}))
	r.Handle("/healthz", methods(map[string]http.HandlerFunc{http.MethodGet: h.Health}))
}
