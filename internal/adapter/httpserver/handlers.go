package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/usecase"
)

// Server binds the REST handlers to the job service.
type Server struct {
	Jobs *usecase.JobService
}

// NewServer constructs the handler set.
func NewServer(jobs *usecase.JobService) *Server {
	return &Server{Jobs: jobs}
}

// CreateJob handles POST /job.
func (s *Server) CreateJob(w http.ResponseWriter, r *http.Request) {
	var in usecase.CreateJobInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", domain.ErrInvalidArgument))
		return
	}
	out, err := s.Jobs.CreateJob(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetData handles GET /data?job_id=.
func (s *Server) GetData(w http.ResponseWriter, r *http.Request) {
	jd, err := s.Jobs.GetData(r.Context(), r.URL.Query().Get("job_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jd)
}

// Healthcheck handles GET /healthcheck.
func (s *Server) Healthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
