package http

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"icecream/service"
)

const (
	msgModelsUnavailable = "Models not available"
	msgDataUnavailable   = "Data not available"
	msgOutOfRange        = "Prediction out of range"
)

// RegisterHandlers 注册路由
func RegisterHandlers(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/data", h.handleData)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/predict", methodNotAllowed(http.MethodPost))
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("GET /api/encoders", h.handleEncoders)
	mux.Handle("GET /metrics", h.metrics.Handler())
	mux.HandleFunc("GET /", h.handleStatic)
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, filepath.Join(h.static.Dir, h.static.Index))
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Err(); err != nil {
		h.respond(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": h.svc.State().String(),
			"error":  err.Error(),
		})
		return
	}
	h.respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) handleData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	h.serveFile(w, r, h.static.DataPath)
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	if h.svc.State() != service.StateReady {
		writeError(w, http.StatusInternalServerError, msgModelsUnavailable)
		return
	}

	var payload map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	request, err := parsePredictRequest(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prediction, err := h.svc.Predict(r.Context(), request)
	var unknown *service.UnknownCategoryError
	switch {
	case err == nil:
		h.respond(w, r, http.StatusOK, prediction)
	case errors.Is(err, service.ErrUnavailable):
		writeError(w, http.StatusInternalServerError, msgModelsUnavailable)
	case errors.Is(err, service.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, msgOutOfRange)
	case errors.As(err, &unknown):
		writeError(w, http.StatusBadRequest, unknown.Error())
	default:
		h.logger.Error("prediction failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Metrics(r.Context())
	switch {
	case err == nil:
		h.respond(w, r, http.StatusOK, report)
	case errors.Is(err, service.ErrUnavailable):
		writeError(w, http.StatusInternalServerError, msgDataUnavailable)
	default:
		h.logger.Error("evaluation failed", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handlers) handleEncoders(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgDataUnavailable)
		return
	}
	h.respond(w, r, http.StatusOK, categories)
}

// handleStatic 静态文件, 不暴露目录和点文件
func (h *Handlers) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") {
			http.NotFound(w, r)
			return
		}
	}
	h.serveFile(w, r, filepath.Join(h.static.Dir, filepath.FromSlash(name)))
}

// serveFile 输出普通文件, 不做 index.html 重定向
func (h *Handlers) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	file, err := os.Open(name)
	if err != nil {
		w.Header().Del("Content-Type")
		http.NotFound(w, r)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		w.Header().Del("Content-Type")
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

// methodNotAllowed 405
func methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// parsePredictRequest 按固定顺序读取字段, 报告第一个缺失字段
func parsePredictRequest(payload map[string]json.RawMessage) (service.PredictRequest, error) {
	var (
		request service.PredictRequest
		err     error
	)
	if request.Temperature, err = numberField(payload, "temperature"); err != nil {
		return request, err
	}
	if request.Rainfall, err = numberField(payload, "rainfall"); err != nil {
		return request, err
	}
	if request.DayOfWeek, err = stringField(payload, "dayOfWeek"); err != nil {
		return request, err
	}
	if request.Month, err = stringField(payload, "month"); err != nil {
		return request, err
	}
	return request, nil
}

func rawField(payload map[string]json.RawMessage, name string) (json.RawMessage, error) {
	raw, ok := payload[name]
	if !ok {
		return nil, errors.Errorf("Missing field '%s'", name)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, invalidField(name)
	}
	return raw, nil
}

// numberField 数字或数字字符串
func numberField(payload map[string]json.RawMessage, name string) (float64, error) {
	raw, err := rawField(payload, name)
	if err != nil {
		return 0, err
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, invalidField(name)
		}
		if value, err = strconv.ParseFloat(strings.TrimSpace(text), 64); err != nil {
			return 0, invalidField(name)
		}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, invalidField(name)
	}
	return value, nil
}

func stringField(payload map[string]json.RawMessage, name string) (string, error) {
	raw, err := rawField(payload, name)
	if err != nil {
		return "", err
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", invalidField(name)
	}
	return value, nil
}

func invalidField(name string) error {
	return errors.Errorf("Invalid field '%s'", name)
}

// respond 先编码再写状态码, 编码失败返回 500 并记录日志
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := writeJSON(w, status, v); err != nil {
		h.logger.Error("encode response failed",
			zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(`{"error":"internal server error"}`)
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
	return errors.Trace(err)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
