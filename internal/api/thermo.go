package api

import (
	"errors"
	"net/http"

	"catwatch/internal/thermo"
)

// thermoErrorResponse is the failure shape for the sensor endpoint.
// The fields mirror a successful snapshot so dashboard code can bind
// either without branching.
type thermoErrorResponse struct {
	Count     int             `json:"count"`
	UpdatedAt *string         `json:"updated_at"`
	Items     []thermo.Reading `json:"items"`
	Error     string          `json:"error"`
	NeedLogin bool            `json:"need_login"`
}

// handleThermometers returns the reconciled sensor snapshot.
//
// ?mock=1 serves fixture data for dashboard development without cloud
// credentials. Missing configuration maps to 400, upstream failures to
// 502; both carry a need_login hint when re-authentication would help.
func (s *Server) handleThermometers(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("mock") == "1" {
		writeJSON(w, http.StatusOK, thermo.MockSnapshot())
		return
	}

	if s.thermo == nil {
		writeJSON(w, http.StatusBadRequest, thermoErrorResponse{
			Items:     []thermo.Reading{},
			Error:     thermo.ErrMissingCredentials.Error(),
			NeedLogin: true,
		})
		return
	}

	snapshot, err := s.thermo.GetHouseReadings(r.Context())
	if err != nil {
		s.logger.Error("failed to load thermometer data", "error", err)

		needLogin := thermo.NeedsLogin(err)
		status := http.StatusBadGateway
		message := "Failed to load sensor data from the cloud."
		if errors.Is(err, thermo.ErrMissingCredentials) {
			status = http.StatusBadRequest
			message = err.Error()
		} else if needLogin {
			message = err.Error()
		}

		writeJSON(w, status, thermoErrorResponse{
			Items:     []thermo.Reading{},
			Error:     message,
			NeedLogin: needLogin,
		})
		return
	}

	if s.influx != nil {
		for _, item := range snapshot.Items {
			s.influx.WriteThermometer(item.DID, item.Room, item.Temperature, item.Humidity, item.Online)
		}
	}

	writeJSON(w, http.StatusOK, snapshot)
}
