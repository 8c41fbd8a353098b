package daemon

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"familyboard/internal/api"
	"familyboard/internal/assignments"
	"familyboard/internal/batch"
	"familyboard/internal/board"
	"familyboard/internal/boardview"
	"familyboard/internal/stages"
)

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.svc.Store.CheckHealth(r.Context())
	payload := api.HealthResponse{
		Status:        "ok",
		SchemaVersion: health.SchemaVersion,
		MissingTables: health.MissingTables,
		Stages:        health.Stages,
		Assignments:   health.Assignments,
		History:       health.HistoryEntries,
		Error:         health.Error,
	}
	status := http.StatusOK
	if err != nil || !health.Healthy() {
		payload.Status = "degraded"
		if err != nil && payload.Error == "" {
			payload.Error = err.Error()
		}
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, payload)
}

func (s *apiServer) handleBoard(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.svc.Assignments.GetBoard(r.Context(), principal(r).FamilyID, filters)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromBoard(b))
}

func parseFilters(r *http.Request) (board.Filters, error) {
	query := r.URL.Query()
	from, err := api.ParseTime(strings.TrimSpace(query.Get("from")))
	if err != nil {
		return board.Filters{}, err
	}
	to, err := api.ParseTime(strings.TrimSpace(query.Get("to")))
	if err != nil {
		return board.Filters{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return board.Filters{}, board.InvalidInputf("date range ends before it starts")
	}
	var tags []string
	for _, value := range query["tag"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return board.Filters{From: from, To: to, Tags: tags}, nil
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Assignments.GetBoard(r.Context(), principal(r).FamilyID, board.Filters{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStats(boardview.ComputeStats(b)))
}

func (s *apiServer) handleListStages(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Stages.List(r.Context(), principal(r).FamilyID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStages(list))
}

func (s *apiServer) handleSaveStages(w http.ResponseWriter, r *http.Request) {
	var payload []api.Stage
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	saved, err := s.svc.Stages.Save(r.Context(), principal(r).FamilyID, api.ToStages(payload))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStages(saved))
}

func (s *apiServer) handleCreateStage(w http.ResponseWriter, r *http.Request) {
	var payload api.CreateStageRequest
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	created, err := s.svc.Stages.Create(r.Context(), principal(r).FamilyID, stages.Input{
		Name:           payload.Name,
		Color:          payload.Color,
		ExternalStatus: payload.ExternalStatusMapping,
		Hidden:         payload.IsHidden,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromStage(created))
}

func (s *apiServer) handleDeleteStage(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	reassignTo := strings.TrimSpace(r.URL.Query().Get("reassignTo"))
	moved, err := s.svc.Stages.Delete(r.Context(), p.UserID, p.FamilyID, chi.URLParam(r, "stageID"), reassignTo)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteStageResponse{Reassigned: moved})
}

func (s *apiServer) handleStageVisibility(w http.ResponseWriter, r *http.Request) {
	var payload api.VisibilityRequest
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	stage, err := s.svc.Stages.SetHidden(r.Context(), principal(r).FamilyID, chi.URLParam(r, "stageID"), payload.Hidden)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStage(stage))
}

func (s *apiServer) handleStagePosition(w http.ResponseWriter, r *http.Request) {
	var payload api.PositionRequest
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	list, err := s.svc.Stages.Move(r.Context(), principal(r).FamilyID, chi.URLParam(r, "stageID"), payload.Position)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStages(list))
}

func (s *apiServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Assignments.Get(r.Context(), principal(r).FamilyID, chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AssignmentDetail{
		Assignment:     api.FromAssignment(detail.Assignment),
		ExternalStatus: detail.ExternalStatus,
	})
}

func (s *apiServer) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var payload api.AssignmentPatch
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	p := principal(r)
	_, err := s.svc.Assignments.Update(r.Context(), assignments.UpdateRequest{
		Actor:    p.UserID,
		FamilyID: p.FamilyID,
		OrderID:  chi.URLParam(r, "orderID"),
		Patch:    payload.ToPatch(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var payload api.BulkUpdateRequest
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	p := principal(r)
	_, err := s.svc.Batch.BulkUpdate(r.Context(), batch.Request{
		Actor:    p.UserID,
		FamilyID: p.FamilyID,
		OrderIDs: payload.OrderIDs,
		Patch:    payload.Patch(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Engine.History(r.Context(), principal(r).FamilyID, chi.URLParam(r, "orderID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromHistory(entries))
}

func (s *apiServer) handleSyncOrders(w http.ResponseWriter, r *http.Request) {
	var payload api.SyncRequest
	if !s.decodeJSON(w, r, &payload) {
		return
	}
	orders := make([]board.OrderSnapshot, 0, len(payload.Orders))
	for _, order := range payload.Orders {
		snapshot, err := order.ToOrder()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		orders = append(orders, snapshot)
	}
	result, err := s.svc.Assignments.Observe(r.Context(), principal(r).FamilyID, orders)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SyncResponse{Created: result.Created, Refreshed: result.Refreshed})
}
