package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gk6450/mcq-gen/internal/indexer"
	"github.com/gk6450/mcq-gen/internal/models"
	"github.com/gk6450/mcq-gen/internal/storage"
)

// maxUploadBytes bounds multipart memory buffering for PDF uploads.
const maxUploadBytes = 64 << 20

// openEndedPage stands in for "last page" when a chapter range leaves the end
// open; chapter attribution only range-checks, so any value past the real
// page count behaves the same.
const openEndedPage = 1 << 30

func (s *Server) handleIngestBook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		s.respondError(w, http.StatusBadRequest, "only .pdf files are accepted")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	chapters, err := parseChapters(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}
	input := indexer.IngestInput{
		BookID:   r.FormValue("book_id"),
		Title:    title,
		Owner:    r.FormValue("owner"),
		PDF:      content,
		Chapters: chapters,
	}
	s.logger.Debug("ingest request",
		zap.String("book_id", input.BookID),
		zap.String("filename", header.Filename),
		zap.Int("chapters", len(chapters)))
	result, err := s.pipeline.Ingest(r.Context(), input)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

// parseChapters reads either a chapters_json list or a single
// chapter_name/start_page/end_page triple from the form.
func parseChapters(r *http.Request) ([]models.ChapterSpec, error) {
	if raw := r.FormValue("chapters_json"); raw != "" {
		var chapters []models.ChapterSpec
		if err := json.Unmarshal([]byte(raw), &chapters); err != nil {
			return nil, errors.New("chapters_json is not valid JSON")
		}
		return chapters, nil
	}
	name := r.FormValue("chapter_name")
	if name == "" {
		return nil, nil
	}
	start, end := 1, openEndedPage
	if v := r.FormValue("start_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("start_page must be an integer")
		}
		start = n
	}
	if v := r.FormValue("end_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("end_page must be an integer")
		}
		end = n
	}
	return []models.ChapterSpec{{Name: name, StartPage: start, EndPage: end}}, nil
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	books, err := s.ledger.ListBooks(r.Context(), limit)
	if err != nil {
		s.logger.Error("list books failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"books": books})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	book, err := s.ledger.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrBookNotFound) {
			s.respondError(w, http.StatusNotFound, "book not found")
			return
		}
		s.logger.Error("get book failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, book)
}

type updateBookRequest struct {
	Title  *string `json:"title,omitempty"`
	Owner  *string `json:"owner,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	book, err := s.ledger.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrBookNotFound) {
			s.respondError(w, http.StatusNotFound, "book not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Owner != nil {
		book.Owner = *req.Owner
	}
	if req.Active != nil {
		book.Active = *req.Active
	}
	if err := s.ledger.UpsertBook(r.Context(), book); err != nil {
		s.logger.Error("update book failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleteVectors := true
	if v := r.URL.Query().Get("vectors"); v != "" {
		deleteVectors = v != "false"
	}
	s.logger.Debug("delete book request", zap.String("id", id), zap.Bool("vectors", deleteVectors))
	result, err := s.pipeline.Delete(r.Context(), id, deleteVectors)
	if err != nil {
		s.logger.Error("delete failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleListChapters(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ledger.GetBook(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrBookNotFound) {
			s.respondError(w, http.StatusNotFound, "book not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chapters, err := s.ledger.ListChapters(r.Context(), id)
	if err != nil {
		s.logger.Error("list chapters failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"book_id": id, "chapters": chapters})
}

type retrieveRequest struct {
	BookID   string   `json:"book_id"`
	Chapter  string   `json:"chapter,omitempty"`
	Chapters []string `json:"chapters,omitempty"`
	Query    string   `json:"query"`
	TopK     int      `json:"top_k,omitempty"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	chapters := req.Chapters
	if req.Chapter != "" {
		chapters = append(chapters, req.Chapter)
	}
	s.logger.Debug("retrieve request",
		zap.String("book_id", req.BookID),
		zap.Strings("chapters", chapters),
		zap.Int("top_k", req.TopK))
	results, err := s.engine.Retrieve(r.Context(), req.BookID, chapters, req.Query, req.TopK)
	if err != nil {
		s.logger.Error("retrieve failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"chunks": results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookCount, err := s.ledger.CountBooks(ctx)
	if err != nil {
		s.logger.Error("status: count books failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.ledger.CountAllChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"books":  bookCount,
		"chunks": chunkCount,
		"config": map[string]interface{}{
			"vector_provider":    s.config.Vector.Provider,
			"index_name":         s.config.Vector.IndexName,
			"embedding_provider": s.config.Embedding.Provider,
			"embedding_model":    s.config.Embedding.Model,
			"chunk_size":         s.config.Ingest.ChunkSize,
			"chunk_overlap":      s.config.Ingest.ChunkOverlap,
			"top_k":              s.config.Retrieval.TopK,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
