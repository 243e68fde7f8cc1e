package api

import "net/http"

const (
	serviceName    = "R-Count Decision Service"
	serviceVersion = "1.0.0"
)

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}
