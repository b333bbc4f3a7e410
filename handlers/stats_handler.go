package handlers

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/camden-git/curatorbackend/database"
)

// StatsHandler serves aggregate curation counts for the dashboard
type StatsHandler struct {
	DB *sql.DB
}

func (sh *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := database.GetLibraryStats(sh.DB)
	if err != nil {
		log.Printf("handlers: failed to compute library stats: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeStorageFailure, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
