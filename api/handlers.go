package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
	"github.com/tmobile-dashboard/gateway-monitor/readings"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type setLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createReadingRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.viewState(s.store.Snapshot()))
}

func (s *Server) handleActivity(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.currentActivity())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		s.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "refresh not available"})
		return
	}
	if err := s.refresher.Refresh(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewState(s.store.Snapshot()))
}

func (s *Server) handleGetWifi(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.client.WifiData(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetWifi(w http.ResponseWriter, r *http.Request) {
	var cfg gateway.WifiConfig
	if !s.decode(w, r, &cfg) {
		return
	}
	if err := s.client.SetWifiData(r.Context(), &cfg); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}
	if err := s.client.Login(r.Context(), req.Username, req.Password, req.Remember); err != nil {
		s.writeError(w, err)
		return
	}
	s.refresh()
	s.writeJSON(w, http.StatusOK, map[string]string{"session": s.client.Session().State().String()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Logout(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.refresh()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForget(w http.ResponseWriter, _ *http.Request) {
	if s.remembered == nil {
		s.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "no credential store"})
		return
	}
	if err := s.remembered.Forget(); err != nil {
		s.logger.Error("forget credentials", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReboot(w http.ResponseWriter, r *http.Request) {
	if err := s.client.Reboot(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSetLogin(w http.ResponseWriter, r *http.Request) {
	var req setLoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}
	if err := s.client.SetLogin(r.Context(), req.Username, req.Password); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCellMapper(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	links := gateway.CellMapperLinks(snap.State.Cell)
	if links == nil {
		links = []gateway.CellMapperLink{}
	}
	s.writeJSON(w, http.StatusOK, links)
}

func (s *Server) handleListReadings(w http.ResponseWriter, _ *http.Request) {
	if !s.requireReadings(w) {
		return
	}
	all, err := s.readings.All()
	if err != nil {
		s.logger.Error("list readings", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	if !s.requireReadings(w) {
		return
	}
	var req createReadingRequest
	if !s.decode(w, r, &req) {
		return
	}

	snap := s.store.Snapshot()
	if !snap.HasState {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "no gateway data to save yet"})
		return
	}
	reading, err := readings.NewReading(req.Name, req.Location, req.Notes, snap.State, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.readings.Insert(reading); err != nil {
		s.logger.Error("save reading", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	s.writeJSON(w, http.StatusCreated, reading)
}

func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	if !s.requireReadings(w) {
		return
	}
	id, ok := s.readingID(w, r)
	if !ok {
		return
	}
	reading, err := s.readings.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleDeleteReading(w http.ResponseWriter, r *http.Request) {
	if !s.requireReadings(w) {
		return
	}
	id, ok := s.readingID(w, r)
	if !ok {
		return
	}
	if err := s.readings.Delete(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireReadings(w http.ResponseWriter) bool {
	if s.readings == nil {
		s.writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "readings are not enabled"})
		return false
	}
	return true
}

func (s *Server) readingID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reading id"})
		return 0, false
	}
	return id, true
}

// refresh polls in the background so state changes show up without waiting
// for the next tick.
func (s *Server) refresh() {
	if s.refresher == nil {
		return
	}
	go func() {
		if err := s.refresher.Refresh(context.Background()); err != nil {
			s.logger.Debug("refresh after change", zap.Error(err))
		}
	}()
}
