package controller

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gfrmin/scalibur/internal/modules/scale/types"
	"github.com/gfrmin/scalibur/internal/utils"
)

func (c *scaleControllerImpl) handleRunIngest(w http.ResponseWriter, r *http.Request) {
	stats, err := c.ingest.Run(r.Context())
	if err != nil {
		slog.Error("ingest run failed", "run_id", stats.RunID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "ingest run failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}

func (c *scaleControllerImpl) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	limit, profileID, err := parseMeasurementsQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	measurements, err := c.repository.ListMeasurements(limit, profileID)
	if err != nil {
		slog.Error("list measurements failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurements")
		return
	}
	if measurements == nil {
		measurements = []types.Measurement{}
	}
	utils.WriteJSON(w, http.StatusOK, measurements)
}

func (c *scaleControllerImpl) handleLatestMeasurement(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseProfileID(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	latest, err := c.repository.LatestMeasurement(profileID)
	if err != nil {
		slog.Error("latest measurement failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load measurement")
		return
	}
	if latest == nil {
		utils.WriteError(w, http.StatusNotFound, "no measurements recorded")
		return
	}
	utils.WriteJSON(w, http.StatusOK, latest)
}

func (c *scaleControllerImpl) handleProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := c.repository.ListProfiles()
	if err != nil {
		slog.Error("list profiles failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load profiles")
		return
	}
	if profiles == nil {
		profiles = []types.Profile{}
	}
	utils.WriteJSON(w, http.StatusOK, profiles)
}

func parseMeasurementsQuery(r *http.Request) (limit int, profileID *int64, err error) {
	limit = 10
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 || limit > 1000 {
			return 0, nil, fmt.Errorf("invalid limit %q (allowed: 1-1000)", s)
		}
	}
	profileID, err = parseProfileID(r)
	return limit, profileID, err
}

func parseProfileID(r *http.Request) (*int64, error) {
	s := r.URL.Query().Get("profile_id")
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return nil, fmt.Errorf("invalid profile_id %q", s)
	}
	return &id, nil
}
