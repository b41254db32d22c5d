package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/ridwanullahh/qurandb/internal/docstore"
	"github.com/ridwanullahh/qurandb/internal/models"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, s.db.Status())
	return nil
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) error {
	names, err := s.db.ListCollections(r.Context())
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
	return nil
}

// queryCollection reads a collection with optional sort, limit and offset
// query parameters.
func (s *Server) queryCollection(w http.ResponseWriter, r *http.Request) error {
	q := s.db.Query(r.PathValue("collection"))
	params := r.URL.Query()
	if field := params.Get("sort"); field != "" {
		dir := docstore.Asc
		if params.Get("dir") == "desc" {
			dir = docstore.Desc
		}
		q = q.Sort(field, dir)
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return models.Validation("limit must be a non-negative integer")
		}
		q = q.Limit(n)
	}
	if v := params.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return models.Validation("offset must be a non-negative integer")
		}
		q = q.Offset(n)
	}
	docs, err := q.Exec(r.Context())
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
	return nil
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) error {
	doc, err := s.db.GetItem(r.Context(), r.PathValue("collection"), r.PathValue("key"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, doc)
	return nil
}

func (s *Server) insert(w http.ResponseWriter, r *http.Request, _ docstore.Document) error {
	var item docstore.Document
	if err := readJSON(r, &item); err != nil {
		return err
	}
	doc, err := s.db.Insert(r.Context(), r.PathValue("collection"), item)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, doc)
	return nil
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, _ docstore.Document) error {
	var updates docstore.Document
	if err := readJSON(r, &updates); err != nil {
		return err
	}
	doc, err := s.db.Update(r.Context(), r.PathValue("collection"), r.PathValue("key"), updates)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, doc)
	return nil
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request, _ docstore.Document) error {
	if err := s.db.Delete(r.Context(), r.PathValue("collection"), r.PathValue("key")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) auditLog(w http.ResponseWriter, r *http.Request, _ docstore.Document) error {
	entries := s.db.Audit(r.PathValue("collection"))
	writeJSON(w, http.StatusOK, entries)
	return nil
}

func (s *Server) exportCollection(w http.ResponseWriter, r *http.Request, _ docstore.Document) error {
	content, err := s.db.ExportCollection(r.Context(), r.PathValue("collection"))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(content)
	return err
}

// 8 MiB ought to cover any collection export.
const maxImportSize = 8 << 20

func (s *Server) importCollection(w http.ResponseWriter, r *http.Request, _ docstore.Document) error {
	content, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		return models.Validation("unreadable request body").Wrap(err)
	}
	overwrite := r.URL.Query().Get("overwrite") == "true"
	n, err := s.db.ImportCollection(r.Context(), r.PathValue("collection"), content, overwrite)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
	return nil
}
