package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/logging"
)

// (GET /api/universalCRUD/ping)
func (s *server) Ping(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// (POST /api/universalCRUD/filtered/{collection})
func (s *server) Filtered(w http.ResponseWriter, r *http.Request) {
	req := cs.NewFilterRequest()
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err, "")
		return
	}

	page, err := s.store.Filtered(r.Context(), mux.Vars(r)["collection"], req)
	if err != nil {
		s.fail(w, r, err, "Server error in filtered endpoint")
		return
	}

	respond(w, r, http.StatusOK, page)
}

// (POST /api/universalCRUD/list/{collection})
func (s *server) List(w http.ResponseWriter, r *http.Request) {
	var req cs.ListRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err, "")
		return
	}

	page, err := s.store.List(r.Context(), mux.Vars(r)["collection"], req)
	if err != nil {
		s.fail(w, r, err, "Server error in get collection endpoint")
		return
	}

	respond(w, r, http.StatusOK, page)
}

// (GET /api/universalCRUD/schema/{model})
func (s *server) Schema(w http.ResponseWriter, r *http.Request) {
	shapes, err := s.store.Schema(mux.Vars(r)["model"])
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	respond(w, r, http.StatusOK, shapes)
}

// (POST /api/universalCRUD/{collection})
func (s *server) Create(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]

	var input cs.Record
	if err := decode(r, &input); err != nil {
		s.fail(w, r, err, "")
		return
	}

	created, err := s.store.Create(r.Context(), collection, input)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	s.harvest(r.Context(), collection, created)
	respond(w, r, http.StatusCreated, created)
}

// (GET /api/universalCRUD/{collection}/{id})
func (s *server) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rec, err := s.store.Get(r.Context(), vars["collection"], vars["id"])
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	respond(w, r, http.StatusOK, rec)
}

// (PUT /api/universalCRUD/{collection}/{id})
func (s *server) Update(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var patch cs.Record
	if err := decode(r, &patch); err != nil {
		s.fail(w, r, err, "")
		return
	}

	updated, err := s.store.Update(r.Context(), vars["collection"], vars["id"], patch)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	s.harvest(r.Context(), vars["collection"], updated)
	respond(w, r, http.StatusOK, updated)
}

// (DELETE /api/universalCRUD/{collection}/{id})
func (s *server) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	deleted, err := s.store.Delete(r.Context(), vars["collection"], vars["id"])
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	respond(w, r, http.StatusOK, deleted)
}

// harvest extends the settings options with the select values of a written record.
// The write already succeeded, so failures are only logged.
func (s *server) harvest(ctx context.Context, collection string, rec cs.Record) {
	if s.settings == nil {
		return
	}

	fields, err := s.store.Schema(collection)
	if err == nil {
		err = s.settings.HarvestRecord(ctx, fields, rec)
	}

	if err != nil {
		logging.FromContext(ctx).Warn("settings harvest failed",
			zap.String("collection", collection),
			zap.Error(err),
		)
	}
}
