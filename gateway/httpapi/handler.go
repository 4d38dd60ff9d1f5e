package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/tbxark/stepform/gateway"
	"github.com/tbxark/stepform/types"
	"github.com/tbxark/stepform/wizard"
)

// UploadOpener is implemented by gateways that can serve stored uploads back
// by content id. The upload URLs they hand out should point at the handler's
// /uploads/{id} route.
type UploadOpener interface {
	OpenUpload(ctx context.Context, id string) (types.File, bool, error)
}

// Handler exposes a wizard.Gateway over HTTP.
type Handler struct {
	gw     wizard.Gateway
	logger *slog.Logger
	mux    *http.ServeMux
}

func NewHandler(gw wizard.Gateway, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{gw: gw, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /draft", h.fetchDraft)
	h.mux.HandleFunc("PUT /steps/{step}", h.saveStep)
	h.mux.HandleFunc("POST /finalize", h.finalize)
	h.mux.HandleFunc("GET /uploads/{id}", h.openUpload)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if key := r.Header.Get(HeaderDraftKey); key != "" {
		r = r.WithContext(gateway.WithDraftKey(r.Context(), key))
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) fetchDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.gw.FetchDraft(r.Context())
	if errors.Is(err, types.ErrDraftNotFound) {
		h.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) saveStep(w http.ResponseWriter, r *http.Request) {
	step, err := strconv.Atoi(r.PathValue("step"))
	if err != nil || step < 0 {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid step"))
		return
	}
	req := &types.SaveStepRequest{Step: step}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		req.Fields, req.Uploads, err = decodeMultipart(r)
	case "application/json", "":
		req.Fields, err = decodeFields(r)
	default:
		h.writeError(w, http.StatusUnsupportedMediaType, errors.New("unsupported content type "+mediaType))
		return
	}
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.gw.SaveStep(r.Context(), req)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.logger.Debug("Step saved over http", "step", step, "uploads", len(req.Uploads))
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.gw.Finalize(r.Context(), fields); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) openUpload(w http.ResponseWriter, r *http.Request) {
	opener, ok := h.gw.(UploadOpener)
	if !ok {
		h.writeError(w, http.StatusNotFound, errors.New("uploads are not served by this gateway"))
		return
	}
	id := r.PathValue("id")
	f, found, err := opener.OpenUpload(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		h.writeError(w, http.StatusNotFound, errors.New("upload not found"))
		return
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(f.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	if f.Name != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Name}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

func decodeFields(r *http.Request) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxFormMemory))
	if err != nil {
		return nil, err
	}
	var body fieldsBody
	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &body); err != nil {
			return nil, err
		}
	}
	if body.Fields == nil {
		body.Fields = map[string]any{}
	}
	return body.Fields, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Error("Encode response failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		h.logger.Warn("Gateway request failed", "status", code, "error", err)
	}
	h.writeJSON(w, code, errorBody{Error: err.Error()})
}
