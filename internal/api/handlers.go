package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oldmoneygit/MARCOLA-sub004/internal/lead"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/outreach"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/research"
	"github.com/oldmoneygit/MARCOLA-sub004/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateResearch(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	var params research.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.research.Run(r.Context(), owner, params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	f := store.RunFilter{Status: lead.RunStatus(r.URL.Query().Get("status"))}
	if limit, err := queryInt(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	} else if limit != nil {
		f.Limit = *limit
	}
	if offset, err := queryInt(r, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	} else if offset != nil {
		f.Offset = *offset
	}

	runs, err := s.store.ListRuns(r.Context(), owner, f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if runs == nil {
		runs = []lead.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	run, err := s.store.GetRun(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	q := r.URL.Query()
	f := store.LeadFilter{
		Classification: lead.Classification(q.Get("classification")),
		Status:         lead.Status(q.Get("status")),
		City:           q.Get("city"),
	}

	var err error
	if f.MinScore, err = queryInt(r, "min_score"); err != nil {
		writeError(w, http.StatusBadRequest, "min_score must be an integer")
		return
	}
	if f.MaxScore, err = queryInt(r, "max_score"); err != nil {
		writeError(w, http.StatusBadRequest, "max_score must be an integer")
		return
	}
	if f.HasWebsite, err = queryBool(r, "has_website"); err != nil {
		writeError(w, http.StatusBadRequest, "has_website must be a boolean")
		return
	}
	if f.HasWhatsApp, err = queryBool(r, "has_whatsapp"); err != nil {
		writeError(w, http.StatusBadRequest, "has_whatsapp must be a boolean")
		return
	}
	if limit, err := queryInt(r, "limit"); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	} else if limit != nil {
		f.Limit = *limit
	}
	if offset, err := queryInt(r, "offset"); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	} else if offset != nil {
		f.Offset = *offset
	}

	leads, err := s.store.ListLeads(r.Context(), owner, f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	l, err := s.store.GetLead(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handlePatchLead(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	var patch store.LeadPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Status != nil && !validStatus(*patch.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	l, err := s.store.PatchLead(r.Context(), owner, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	if err := s.store.DeleteLead(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	its, err := s.store.ListInteractions(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if its == nil {
		its = []lead.Interaction{}
	}
	writeJSON(w, http.StatusOK, its)
}

func (s *Server) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	var body struct {
		Type      string         `json:"type"`
		Direction lead.Direction `json:"direction"`
		Content   string         `json:"content,omitempty"`
		Outcome   string         `json:"outcome,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	if body.Direction != lead.DirectionOutbound && body.Direction != lead.DirectionInbound {
		writeError(w, http.StatusBadRequest, "direction must be ENVIADO or RECEBIDO")
		return
	}

	l, err := s.store.LogInteraction(r.Context(), owner, lead.Interaction{
		LeadID:    chi.URLParam(r, "id"),
		Type:      body.Type,
		Direction: body.Direction,
		Content:   body.Content,
		Outcome:   body.Outcome,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleVerifyLead(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	l, err := s.verify.VerifyLead(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleVerifyBatch(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	summary, err := s.verify.RunBatch(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleVerifyPending(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	n, err := s.verify.CountPending(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": n})
}

func (s *Server) handleOutreachSend(w http.ResponseWriter, r *http.Request) {
	owner := s.requireOwner(w, r)
	if owner == "" {
		return
	}

	var req outreach.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LeadID == "" {
		writeError(w, http.StatusBadRequest, "lead_id is required")
		return
	}

	delivery, err := s.outreach.Send(r.Context(), owner, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, delivery)
}

func validStatus(st lead.Status) bool {
	switch st {
	case lead.StatusNew, lead.StatusContacted, lead.StatusReplied,
		lead.StatusClosed, lead.StatusDisqualified:
		return true
	}
	return false
}
