package api

import (
	"net/http"
	"strconv"
)

// handleLightUsageHourly handles GET /light-usage/hourly.
//
// The response is chart-ready: {"data": [{"hour": "15:00", "light1": 42, ...}]},
// oldest bucket first, minutes per light.
func (s *Server) handleLightUsageHourly(w http.ResponseWriter, r *http.Request) {
	rows, err := s.usage.Hourly(r.Context(), s.now())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	lights := s.usage.Lights()
	data := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		point := make(map[string]any, len(lights)+1)
		point["hour"] = row.Hour
		for _, id := range lights {
			point["light"+strconv.Itoa(id)] = row.Lights[id]
		}
		data = append(data, point)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}
