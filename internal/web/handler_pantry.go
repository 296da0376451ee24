package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/vbonduro/fridgescan/internal/domain"
	"github.com/vbonduro/fridgescan/internal/service"
)

const (
	maxBodyBytes = 4 << 10
	maxNameLen   = 200
)

type itemResponse struct {
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
	Label   string `json:"label"`
}

func toItemResponses(items []domain.Item) []itemResponse {
	out := make([]itemResponse, len(items))
	for i, it := range items {
		out[i] = itemResponse{Name: it.Name, Barcode: it.Barcode, Label: it.Label()}
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Secure":   secureContext(r),
		"Items":    s.service.Items(),
		"Shopping": s.service.ShoppingList(),
		"Scanner":  s.scanner != nil,
	}
	if err := s.renderPage(w, data,
		"base.html", "index.html", "partials/items.html", "partials/shopping.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items := s.service.SearchItems(r.URL.Query().Get("q"))

	if isHTMX(r) {
		if err := s.renderPartial(w, "partials/items.html", "items", items); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, toItemResponses(items))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := fields["code"]

	item, err := s.service.HandleScan(r.Context(), code)
	if errors.Is(err, service.ErrEmptyCode) {
		http.Error(w, "code required", http.StatusBadRequest)
		return
	}
	if errors.Is(err, service.ErrCodeTooLong) {
		http.Error(w, "code too long", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "failed to record scan", http.StatusInternalServerError)
		s.logger.Error("scan failed", "code", code, "error", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, itemResponse{Name: item.Name, Barcode: item.Barcode, Label: item.Label()})
}

func (s *Server) handleListShopping(w http.ResponseWriter, r *http.Request) {
	views := s.service.ShoppingList()
	if isHTMX(r) {
		if err := s.renderPartial(w, "partials/shopping.html", "shopping", views); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddShopping(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := fields["name"]
	if len(name) > maxNameLen {
		http.Error(w, "name too long", http.StatusBadRequest)
		return
	}

	views, added, err := s.service.AddShopping(r.Context(), name)
	if err != nil {
		http.Error(w, "failed to add shopping entry", http.StatusInternalServerError)
		s.logger.Error("add shopping failed", "error", err)
		return
	}

	if isHTMX(r) {
		if err := s.renderPartial(w, "partials/shopping.html", "shopping", views); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, views)
}

// readFields reads string fields from a JSON object body, or from a form
// body for any other content type. Values are trimmed.
func readFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	fields := make(map[string]string)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form body")
		}
		for k := range r.PostForm {
			fields[k] = strings.TrimSpace(r.PostForm.Get(k))
		}
		return fields, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid JSON body")
	}
	for k, v := range fields {
		fields[k] = strings.TrimSpace(v)
	}
	return fields, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}
