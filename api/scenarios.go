/*
scenarios.go - Demo scenario endpoints

PURPOSE:
	Lists and loads the embedded fixture datasets so a demo server can be
	switched between portfolios without restarting.

HOW SCENARIOS WORK:
 1. Look up the dataset by id (fixture.Get)
 2. Replace the whole store contents with its records
 3. Remember the id as the current scenario

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "morrison-portfolio"}

NOTE:

	Scenarios replace the database contents. Only use in development/demo
	environments. Handlers built without a Writer refuse to load.

SEE ALSO:
  - fixture/: dataset definitions
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/warp/margin-engine/fixture"
)

// ListScenarios returns every embedded dataset.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios, err := fixture.List()
	if err != nil {
		h.fail(w, r, "ListScenarios", "Failed to list scenarios", err)
		return
	}

	current := h.CurrentScenario()
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = toScenarioDTO(s, current)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario replaces the store contents with a dataset.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Writer == nil {
		writeError(w, http.StatusNotImplemented, "Scenario loading is disabled", nil)
		return
	}

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ScenarioID == "" {
		writeError(w, http.StatusBadRequest, "scenario_id is required", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ds, err := fixture.Load(r.Context(), h.Writer, req.ScenarioID)
	if err != nil {
		if errors.Is(err, fixture.ErrUnknownScenario) {
			writeError(w, http.StatusNotFound, "Scenario not found", err)
			return
		}
		h.fail(w, r, "LoadScenario", "Failed to load scenario", err)
		return
	}
	h.currentScenario = ds.ID

	h.Log.WithFields(logrus.Fields{
		"func":      "LoadScenario",
		"scenario":  ds.ID,
		"contracts": len(ds.Records.Contracts),
	}).Info("scenario loaded")

	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		Status:   "loaded",
		Scenario: toScenarioDTO(ds.Scenario, ds.ID),
		Counts:   recordCounts(ds),
	})
}

// CurrentScenario is the id of the last dataset loaded through the API.
func (h *Handler) CurrentScenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}
