package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devpetry/vipi-matrizes/internal/model"
	"github.com/devpetry/vipi-matrizes/internal/repository"
)

type categoryResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Kind      model.CategoryKind `json:"kind"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func mapCategoryResponse(category model.Category) categoryResponse {
	return categoryResponse{
		ID:        category.ID,
		Name:      category.Name,
		Kind:      category.Kind,
		CreatedAt: category.CreatedAt,
		UpdatedAt: category.UpdatedAt,
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}

	categories, err := s.store.ListCategories(r.Context(), claims.UserID)
	if err != nil {
		s.log.Error("category list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		resp = append(resp, mapCategoryResponse(category))
	}
	writeJSON(w, http.StatusOK, resp)
}

type categoryRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Kind == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	kind, err := model.ParseCategoryKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}

	now := time.Now().UTC()
	category := model.Category{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Kind:      kind,
		UserID:    claims.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCategory(r.Context(), category); err != nil {
		s.log.Error("category create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, mapCategoryResponse(category))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}
	categoryID := chi.URLParam(r, "categoryID")

	category, err := s.store.GetCategory(r.Context(), categoryID, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "category_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapCategoryResponse(category))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}
	categoryID := chi.URLParam(r, "categoryID")

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Kind == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	kind, err := model.ParseCategoryKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}

	category, err := s.store.UpdateCategory(r.Context(), categoryID, claims.UserID, req.Name, kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "category_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapCategoryResponse(category))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}
	categoryID := chi.URLParam(r, "categoryID")

	deleted, err := s.store.DeleteCategory(r.Context(), categoryID, claims.UserID)
	if err != nil {
		s.log.Error("category delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "category_not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type itemResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Quantity    int64     `json:"quantity"`
	UnitValue   float64   `json:"unitValue"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   *string   `json:"updatedBy,omitempty"`
}

func mapItemResponse(item model.Item) itemResponse {
	return itemResponse{
		ID:          item.ID,
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitValue:   item.UnitValue,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
		UpdatedBy:   item.UpdatedBy,
	}
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		s.log.Error("item list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, mapItemResponse(item))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createItemRequest struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	UnitValue   float64 `json:"unitValue"`
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}

	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" || req.Quantity <= 0 || req.UnitValue <= 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	now := time.Now().UTC()
	userID := claims.UserID
	item := model.Item{
		ID:          uuid.NewString(),
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitValue:   req.UnitValue,
		CreatedAt:   now,
		UpdatedAt:   now,
		UpdatedBy:   &userID,
	}
	if err := s.store.CreateItem(r.Context(), item); err != nil {
		s.log.Error("item create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, mapItemResponse(item))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	item, err := s.store.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "item_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapItemResponse(item))
}

type updateItemRequest struct {
	Description *string  `json:"description,omitempty"`
	Quantity    *int64   `json:"quantity,omitempty"`
	UnitValue   *float64 `json:"unitValue,omitempty"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}
	itemID := chi.URLParam(r, "itemID")

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	update := repository.ItemUpdate{UpdatedBy: claims.UserID}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description != "" {
			update.Description = &description
		}
	}
	if req.Quantity != nil && *req.Quantity > 0 {
		update.Quantity = req.Quantity
	}
	if req.UnitValue != nil && *req.UnitValue > 0 {
		update.UnitValue = req.UnitValue
	}

	item, err := s.store.UpdateItem(r.Context(), itemID, update)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "item_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapItemResponse(item))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	deleted, err := s.store.SoftDeleteItem(r.Context(), itemID, time.Now().UTC())
	if err != nil {
		s.log.Error("item delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "item_not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type matrixResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	Kind        *string   `json:"kind,omitempty"`
	FirstNumber *int64    `json:"firstNumber,omitempty"`
	LastNumber  *int64    `json:"lastNumber,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CreatedBy   *string   `json:"createdBy,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	UpdatedBy   *string   `json:"updatedBy,omitempty"`
}

func mapMatrixResponse(matrix model.Matrix) matrixResponse {
	return matrixResponse{
		ID:          matrix.ID,
		Code:        matrix.Code,
		Description: matrix.Description,
		ImageURL:    matrix.ImageURL,
		Kind:        matrix.Kind,
		FirstNumber: matrix.FirstNumber,
		LastNumber:  matrix.LastNumber,
		Notes:       matrix.Notes,
		CreatedAt:   matrix.CreatedAt,
		CreatedBy:   matrix.CreatedBy,
		UpdatedAt:   matrix.UpdatedAt,
		UpdatedBy:   matrix.UpdatedBy,
	}
}

func (s *Server) handleListMatrices(w http.ResponseWriter, r *http.Request) {
	matrices, err := s.store.ListMatrices(r.Context())
	if err != nil {
		s.log.Error("matrix list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]matrixResponse, 0, len(matrices))
	for _, matrix := range matrices {
		resp = append(resp, mapMatrixResponse(matrix))
	}
	writeJSON(w, http.StatusOK, resp)
}

type matrixRequest struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Kind        *string `json:"kind,omitempty"`
	FirstNumber *int64  `json:"firstNumber,omitempty"`
	LastNumber  *int64  `json:"lastNumber,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (s *Server) handleCreateMatrix(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}

	var req matrixRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Description = strings.TrimSpace(req.Description)
	if req.Code == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	now := time.Now().UTC()
	userID := claims.UserID
	matrix := model.Matrix{
		ID:          uuid.NewString(),
		Code:        req.Code,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Kind:        req.Kind,
		FirstNumber: req.FirstNumber,
		LastNumber:  req.LastNumber,
		Notes:       req.Notes,
		CreatedAt:   now,
		CreatedBy:   &userID,
		UpdatedAt:   now,
		UpdatedBy:   &userID,
	}
	if err := s.store.CreateMatrix(r.Context(), matrix); err != nil {
		// The partial unique index rejects a duplicate live code.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "code_taken")
			return
		}
		s.log.Error("matrix create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, mapMatrixResponse(matrix))
}

func (s *Server) handleGetMatrix(w http.ResponseWriter, r *http.Request) {
	matrixID := chi.URLParam(r, "matrixID")

	matrix, err := s.store.GetMatrix(r.Context(), matrixID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "matrix_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapMatrixResponse(matrix))
}

func (s *Server) handleUpdateMatrix(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_session")
		return
	}
	matrixID := chi.URLParam(r, "matrixID")

	var req matrixRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Description = strings.TrimSpace(req.Description)
	if req.Code == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	matrix, err := s.store.UpdateMatrix(r.Context(), matrixID, repository.MatrixUpdate{
		Code:        req.Code,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Kind:        req.Kind,
		FirstNumber: req.FirstNumber,
		LastNumber:  req.LastNumber,
		Notes:       req.Notes,
		UpdatedBy:   claims.UserID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "matrix_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapMatrixResponse(matrix))
}

func (s *Server) handleDeleteMatrix(w http.ResponseWriter, r *http.Request) {
	matrixID := chi.URLParam(r, "matrixID")

	deleted, err := s.store.SoftDeleteMatrix(r.Context(), matrixID, time.Now().UTC())
	if err != nil {
		s.log.Error("matrix delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "matrix_not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
