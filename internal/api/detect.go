package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"catwatch/internal/detection"
	"catwatch/internal/notify"
)

// detectRequest is the camera upload payload.
type detectRequest struct {
	Image   string `json:"image"`
	Message string `json:"message"`
}

// detectResponse is returned to the camera for every accepted frame.
type detectResponse struct {
	Cat        bool    `json:"cat"`
	TooDark    bool    `json:"too_dark"`
	Brightness float64 `json:"brightness"`
}

// handleDetect ingests one camera frame: decode, resize, brightness
// gate, classify, persist. Classification and persistence failures are
// recorded in the log row but never fail the request; the camera only
// needs to know whether to meow back.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"cat": false, "too_dark": false, "error": "missing image",
		})
		return
	}

	imageBytes, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"cat": false, "too_dark": false, "error": "invalid image encoding",
		})
		return
	}

	if req.Message != "" {
		s.logger.Info("camera message", "message", req.Message)
	}

	frame := detection.ResizeIfNeeded(imageBytes)
	brightness, tooDark := s.gate.Check(frame)

	if tooDark {
		message := fmt.Sprintf("Image too dark (brightness: %.2f)", brightness)
		if req.Message != "" {
			message += " | " + req.Message
		}
		recordID, imagePath := s.persistFrame(r.Context(), frame, false, message)
		s.publishDetection(recordID, false, true, brightness, imagePath)

		writeJSON(w, http.StatusOK, detectResponse{
			Cat:        false,
			TooDark:    true,
			Brightness: brightness,
		})
		return
	}

	isCat, classifyErr := s.classifier.Classify(r.Context(), frame)

	message := ""
	if classifyErr != nil {
		message = classifyErr.Error()
		s.logger.Warn("classification failed", "error", classifyErr)
	}
	if req.Message != "" {
		if message != "" {
			message += " | " + req.Message
		} else {
			message = req.Message
		}
	}

	recordID, imagePath := s.persistFrame(r.Context(), frame, isCat, message)
	s.publishDetection(recordID, isCat, false, brightness, imagePath)

	s.logger.Info("detection result",
		"cat", isCat,
		"brightness", brightness,
		"image", imagePath,
	)

	writeJSON(w, http.StatusOK, detectResponse{
		Cat:        isCat,
		TooDark:    false,
		Brightness: brightness,
	})
}

// persistFrame writes the frame to disk and appends a log row. Both
// writes are best-effort: a failed file write is noted in the row
// message, a failed row insert is only logged. The returned image path
// is the public URL under the static prefix.
func (s *Server) persistFrame(ctx context.Context, frame []byte, isCat bool, message string) (int64, string) {
	id := s.counter.Next()
	filename := detection.Filename(id)
	imagePath := s.cfg.Storage.BaseURL + "/" + filename

	if err := os.WriteFile(detection.FramePath(s.cfg.Storage.FramesDir, id), frame, 0o644); err != nil {
		s.logger.Error("failed to store frame", "path", filename, "error", err)
		if message != "" {
			message = err.Error() + " | " + message
		} else {
			message = err.Error()
		}
	}

	recordID, err := s.store.Insert(ctx, imagePath, isCat, message)
	if err != nil {
		s.logger.Error("failed to insert detection record", "error", err)
	}
	return recordID, imagePath
}

// publishDetection fans the outcome out to the optional side channels.
func (s *Server) publishDetection(recordID int64, isCat, tooDark bool, brightness float64, imagePath string) {
	if s.notifier != nil {
		event := notify.Event{
			ID:         recordID,
			Cat:        isCat,
			TooDark:    tooDark,
			Brightness: brightness,
			ImagePath:  imagePath,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.PublishDetection(ctx, event); err != nil {
			s.logger.Warn("detection publish failed", "error", err)
		}
	}

	if s.influx != nil {
		s.influx.WriteDetection(recordID, isCat, tooDark, brightness)
	}
}
