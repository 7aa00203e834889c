package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"crabmigrate/internal/api"
	"crabmigrate/internal/assets"
	"crabmigrate/internal/config"
	"crabmigrate/internal/ledger"
	"crabmigrate/internal/logging"
)

// maxUploadBytes bounds a single media upload.
const maxUploadBytes = 256 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.WithComponent(logger, "api-server"),
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/discover", authMiddleware(token, srv.handleDiscover))
	mux.HandleFunc("/api/get-migration-status", authMiddleware(token, srv.handleMigrationStatus))
	mux.HandleFunc("/api/set-failure", authMiddleware(token, srv.handleSetFailure))
	mux.HandleFunc("/api/replace-content", authMiddleware(token, srv.handleReplaceContent))
	mux.HandleFunc("/api/media", authMiddleware(token, srv.handleUpload))
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/media/file/", srv.handleMediaFile)
	mux.HandleFunc("/media/", srv.handleMediaDetail)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the routed mux for tests.
func (s *apiServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Address reports the bound listen address, or empty before start.
func (s *apiServer) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	page, err := pageParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.discovery.Discover(r.Context(), page)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleMigrationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.daemon.ledger.AggregateCounts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatusFromSummary(summary))
}

func (s *apiServer) handleSetFailure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.SetFailureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AttachmentID <= 0 {
		s.writeError(w, http.StatusBadRequest, "attachment_id must be positive")
		return
	}
	if err := s.daemon.ledger.MarkFailed(r.Context(), req.AttachmentID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := ledger.StatusFailed
	if entry, err := s.daemon.ledger.Get(r.Context(), req.AttachmentID); err == nil && entry != nil {
		status = entry.Status
	}
	s.writeJSON(w, http.StatusOK, api.SetFailureResponse{
		Success:      true,
		AttachmentID: req.AttachmentID,
		Status:       string(status),
	})
}

func (s *apiServer) handleReplaceContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	page, err := pageParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.rewriter.ReplacePage(r.Context(), page)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "read upload")
		return
	}

	params := assets.CreateParams{
		Title:       r.FormValue("title"),
		FileName:    header.Filename,
		MimeType:    uploadMimeType(r, header.Header.Get("Content-Type")),
		Data:        data,
		IsOptimized: formBool(r, "is_crab_optimized"),
		IsMigration: formBool(r, "is_crab_migration"),
		Format:      r.FormValue("crab_optimized_format"),
	}
	if raw := r.FormValue("original_id"); raw != "" {
		originalID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || originalID <= 0 {
			s.writeError(w, http.StatusBadRequest, "original_id must be a positive integer")
			return
		}
		params.OriginalID = originalID
	}
	if params.IsMigration && params.OriginalID == 0 {
		s.writeError(w, http.StatusBadRequest, "migration uploads require original_id")
		return
	}
	if s.daemon.cfg.Optimize.GenerateThumbnails {
		variants, err := uploadVariants(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.Variants = variants
	}

	created, err := s.daemon.assets.Create(r.Context(), params)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.UploadResponse{
		ID:  created.ID,
		URL: s.daemon.assets.FileURL(created),
	})
}

func (s *apiServer) handleMediaDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/media/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid asset id")
		return
	}
	asset, err := s.daemon.assets.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if asset == nil {
		s.writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.AssetView(asset, s.daemon.assets.FileURL(asset)))
}

func (s *apiServer) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/media/file/")
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		s.writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	data, asset, err := s.daemon.assets.FileDataByName(r.Context(), name)
	if err != nil {
		if errors.Is(err, assets.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if asset != nil && asset.MimeType != "" {
		w.Header().Set("Content-Type", asset.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running":       status.Running,
		"database_path": status.DatabasePath,
		"lock_path":     status.LockFilePath,
		"api_address":   status.APIAddress,
	})
}

func pageParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, errors.New("page must be a positive integer")
	}
	return page, nil
}

var variantPartPattern = regexp.MustCompile(`^variant_(\d+)x(\d+)$`)

// uploadVariants collects sized thumbnail parts named variant_<W>x<H>.
func uploadVariants(r *http.Request) ([]assets.VariantData, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	var variants []assets.VariantData
	for name, headers := range r.MultipartForm.File {
		match := variantPartPattern.FindStringSubmatch(name)
		if match == nil || len(headers) == 0 {
			continue
		}
		width, _ := strconv.Atoi(match[1])
		height, _ := strconv.Atoi(match[2])
		if width <= 0 || height <= 0 {
			return nil, fmt.Errorf("variant part %s has zero dimensions", name)
		}
		part, err := headers[0].Open()
		if err != nil {
			return nil, fmt.Errorf("open variant part %s: %w", name, err)
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("read variant part %s: %w", name, err)
		}
		variants = append(variants, assets.VariantData{Width: width, Height: height, Data: data})
	}
	return variants, nil
}

func formBool(r *http.Request, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(r.FormValue(key)))
	return err == nil && value
}

func uploadMimeType(r *http.Request, partType string) string {
	if explicit := strings.TrimSpace(r.FormValue("mime_type")); explicit != "" {
		return explicit
	}
	if idx := strings.IndexByte(partType, ';'); idx >= 0 {
		partType = partType[:idx]
	}
	return strings.TrimSpace(partType)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorBody{Error: message})
}
