package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AntonStoeckl/dynamic-collections-go/availability"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/settings"
)

const (
	modeInside  = "inside"
	modeOutside = "outside"
)

type loginRequest struct {
	EmployeeID string `json:"EmployeeId"`
	Password   string `json:"Password"`
}

type loginResponse struct {
	Message  string    `json:"message"`
	Employee cs.Record `json:"employee"`
}

// (GET /api/universalCRUD/settings/{filename})
func (s *server) GetSettings(w http.ResponseWriter, r *http.Request) {
	doc, err := s.settings.Get(r.Context(), mux.Vars(r)["filename"])
	if err != nil {
		if errors.Is(err, settings.ErrDocumentNotFound) || errors.Is(err, settings.ErrInvalidName) {
			respond(w, r, http.StatusNotFound, errorResponse{Error: "Settings file not found"})
			return
		}
		s.fail(w, r, err, "")
		return
	}

	respond(w, r, http.StatusOK, doc)
}

// (POST /api/universalCRUD/settings/{filename})
func (s *server) PutSettings(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	doc, err := settings.Decode(data)
	if err != nil {
		s.fail(w, r, cs.Invalid("invalid settings document: %v", err), "")
		return
	}

	if err := s.settings.Put(r.Context(), mux.Vars(r)["filename"], doc); err != nil {
		s.fail(w, r, err, "Failed to save settings")
		return
	}

	respond(w, r, http.StatusOK, map[string]bool{"success": true})
}

// (GET /api/universalCRUD/settings/{filename}/options?path=&parent=)
func (s *server) SettingsOptions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	options, err := s.settings.Options(r.Context(), mux.Vars(r)["filename"], query.Get("path"), query.Get("parent"))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	if options == nil {
		options = []string{}
	}

	respond(w, r, http.StatusOK, map[string][]string{"options": options})
}

// (POST /api/universalCRUD/settings/{filename}/values)
func (s *server) AppendSettingsValues(w http.ResponseWriter, r *http.Request) {
	var updates []settings.Update
	if err := decode(r, &updates); err != nil {
		s.fail(w, r, err, "")
		return
	}

	modified, err := s.settings.Apply(r.Context(), mux.Vars(r)["filename"], updates)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	respond(w, r, http.StatusOK, map[string]bool{"modified": modified})
}

// (GET /api/universalCRUD/availability/{carId}?start=&end=&exclude=&mode=inside|outside)
func (s *server) Availability(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	loc := s.store.Location()

	var period cs.Interval
	if v := query.Get("start"); v != "" {
		start, err := cs.ParseDate(v, loc)
		if err != nil {
			s.fail(w, r, cs.Invalid("invalid start date: %s", v), "")
			return
		}
		period.Start = &start
	}

	if v := query.Get("end"); v != "" {
		end, err := cs.ParseDate(v, loc)
		if err != nil {
			s.fail(w, r, cs.Invalid("invalid end date: %s", v), "")
			return
		}
		period.End = &end
	}

	var options []availability.Option
	if id := query.Get("exclude"); id != "" {
		options = append(options, availability.ExcludingRecord(id))
	}

	switch query.Get("mode") {
	case "", modeInside:
	case modeOutside:
		options = append(options, availability.WithOutsideSemantics())
	default:
		s.fail(w, r, cs.Invalid("mode must be %q or %q", modeInside, modeOutside), "")
		return
	}

	available, err := s.availability.IsAvailable(r.Context(), mux.Vars(r)["carId"], period, options...)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	respond(w, r, http.StatusOK, map[string]bool{"available": available})
}

// (POST /api/auth/login)
func (s *server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err, "")
		return
	}

	employee, err := s.auth.Login(r.Context(), req.EmployeeID, req.Password)
	if err != nil {
		s.fail(w, r, err, "")
		return
	}

	respond(w, r, http.StatusOK, loginResponse{Message: "Login successful!", Employee: employee})
}
