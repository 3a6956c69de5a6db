package web

import (
	"errors"
	"net/http"

	"meetlens/internal/classify"
	"meetlens/internal/config"
	"meetlens/internal/hub"
	appLog "meetlens/internal/log"
	"meetlens/internal/refresh"
)

func (s *Server) handleGetRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.classifier.Config())
}

// handleUpdateRules merges a partial rule configuration into the engine and
// persists the result in the preferences.
func (s *Server) handleUpdateRules(w http.ResponseWriter, r *http.Request) {
	var update classify.RulesUpdate
	if err := decodeStrict(w, r, &update); err != nil {
		writeFailure(w, &classify.ConfigurationError{Field: "rules", Err: err})
		return
	}
	if err := s.classifier.Update(update); err != nil {
		writeFailure(w, err)
		return
	}
	rules := s.classifier.Config()
	if err := s.editConfig(func(c *config.Config) { c.Preferences.ClassificationRules = &rules }); err != nil {
		writeFailure(w, err)
		return
	}
	s.rulesChanged()
	writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleResetRules(w http.ResponseWriter, _ *http.Request) {
	s.classifier.Reset()
	if err := s.editConfig(func(c *config.Config) { c.Preferences.ClassificationRules = nil }); err != nil {
		writeFailure(w, err)
		return
	}
	s.rulesChanged()
	writeJSON(w, http.StatusOK, s.classifier.Config())
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, _ *http.Request) {
	s.cfgMu.RLock()
	prefs := s.cfg.Preferences
	s.cfgMu.RUnlock()
	writeJSON(w, http.StatusOK, prefs)
}

// handleUpdatePreferences merges the body over the current preferences.
// Classification rules are managed through /api/rules and left untouched.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	s.cfgMu.RLock()
	next := s.cfg.Preferences
	s.cfgMu.RUnlock()

	// Rules belong to /api/rules; the body may not reach the live pointer.
	next.ClassificationRules = nil
	if err := decodeStrict(w, r, &next); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch {
	case next.MeetingsPerPage > 500:
		writeError(w, http.StatusBadRequest, "meetings_per_page must be at most 500")
		return
	case next.DefaultRangeDays > 366:
		writeError(w, http.StatusBadRequest, "default_range_days must be at most 366")
		return
	}
	next.Normalize()

	var horizon int
	if err := s.editConfig(func(c *config.Config) {
		next.ClassificationRules = c.Preferences.ClassificationRules
		c.Preferences = next
		horizon = c.HorizonDays
	}); err != nil {
		writeFailure(w, err)
		return
	}
	if s.job != nil {
		s.job.SetWindow(next.DefaultRangeDays, horizon)
	}
	s.invalidate()
	s.publish(hub.TypePreferencesSaved, next)
	writeJSON(w, http.StatusOK, next)
}

// handleResetPreferences restores every preference, rules included.
func (s *Server) handleResetPreferences(w http.ResponseWriter, _ *http.Request) {
	defaults := config.DefaultPreferences()
	s.classifier.Reset()

	var horizon int
	if err := s.editConfig(func(c *config.Config) {
		c.Preferences = defaults
		horizon = c.HorizonDays
	}); err != nil {
		writeFailure(w, err)
		return
	}
	if s.job != nil {
		s.job.SetWindow(defaults.DefaultRangeDays, horizon)
	}
	s.rulesChanged()
	s.publish(hub.TypePreferencesSaved, defaults)
	writeJSON(w, http.StatusOK, defaults)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	if s.job == nil {
		writeError(w, http.StatusNotFound, "no snapshot available")
		return
	}
	snap := s.job.Latest()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no snapshot available")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleRefresh runs the pipeline now and returns the new snapshot.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.job == nil {
		writeError(w, http.StatusNotFound, "refresh is not configured")
		return
	}
	snap, err := s.job.Run(r.Context())
	if errors.Is(err, refresh.ErrBusy) {
		writeError(w, http.StatusConflict, "a refresh is already running")
		return
	}
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusOK, snap)
}

// editConfig applies fn to the live configuration and saves it when the
// server was started from a file.
func (s *Server) editConfig(fn func(*config.Config)) error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	fn(s.cfg)
	if s.configPath == "" {
		return nil
	}
	if err := s.cfg.Save(s.configPath); err != nil {
		return err
	}
	appLog.Info("configuration saved", "path", s.configPath)
	return nil
}

func (s *Server) rulesChanged() {
	s.invalidate()
	s.publish(hub.TypeRulesChanged, s.classifier.Config())
}
