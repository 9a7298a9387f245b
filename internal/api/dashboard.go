package api

import (
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"catwatch/internal/detection"
)

// dashboardTemplate renders the recent-detections control panel. The
// UI language follows the deployed firmware's locale.
var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>猫检测记录</title>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .toggle-container { margin: 20px 0; padding: 15px; background: #f0f0f0; border-radius: 5px; }
        .toggle-switch { position: relative; display: inline-block; width: 60px; height: 34px; }
        .toggle-switch input { opacity: 0; width: 0; height: 0; }
        .slider { position: absolute; cursor: pointer; top: 0; left: 0; right: 0; bottom: 0; background-color: #ccc; transition: .4s; border-radius: 34px; }
        .slider:before { position: absolute; content: ""; height: 26px; width: 26px; left: 4px; bottom: 4px; background-color: white; transition: .4s; border-radius: 50%; }
        input:checked + .slider { background-color: #2196F3; }
        input:checked + .slider:before { transform: translateX(26px); }
        table { border-collapse: collapse; width: 100%; margin-top: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        img { max-width: 200px; height: auto; }
    </style>
</head>
<body>
    <h2>猫检测系统控制面板</h2>

    <div class="toggle-container">
        <h3>亮度检测控制</h3>
        <label class="toggle-switch">
            <input type="checkbox" id="brightnessToggle" onchange="toggleBrightness()"{{if .GateEnabled}} checked{{end}}>
            <span class="slider"></span>
        </label>
        <span id="toggleStatus">亮度检测: {{if .GateEnabled}}启用{{else}}禁用{{end}}</span>
    </div>

    <h3>最近 {{.Keep}} 次检测记录（已自动清理旧记录）</h3>
    <table>
        <tr><th>时间</th><th>图片</th><th>有猫</th><th>消息</th></tr>
        {{range .Records}}
        <tr>
            <td>{{.Timestamp.Format "2006-01-02 15:04:05"}}</td>
            <td><img src="{{.ImagePath}}" width="200"></td>
            <td>{{if .IsCat}}✔{{else}}✘{{end}}</td>
            <td>{{if .Message}}{{.Message}}{{else}}-{{end}}</td>
        </tr>
        {{end}}
    </table>

    <script>
        function toggleBrightness() {
            const toggle = document.getElementById('brightnessToggle');
            fetch('/toggle_brightness', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({enabled: toggle.checked})
            })
            .then(response => response.json())
            .then(data => {
                if (data.success) {
                    updateStatus(data.enabled);
                } else {
                    toggle.checked = !toggle.checked;
                }
            })
            .catch(() => { toggle.checked = !toggle.checked; });
        }

        function updateStatus(enabled) {
            const statusText = document.getElementById('toggleStatus');
            statusText.textContent = '亮度检测: ' + (enabled ? '启用' : '禁用');
            statusText.style.color = enabled ? 'green' : 'red';
        }
    </script>
</body>
</html>
`))

// dashboardData is the template context for the control panel.
type dashboardData struct {
	GateEnabled bool
	Keep        int
	Records     []detection.Record
}

// handleDashboard renders the recent detections and prunes everything
// older. Pruning on view keeps the window maintenance in one place;
// between views the log may briefly exceed the window, which is fine.
// Cleanup failures never block the page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	keep := s.cfg.Storage.Keep

	removed, err := s.store.TrimToLatest(r.Context(), keep)
	if err != nil {
		s.logger.Warn("detection log trim failed", "error", err)
	}
	for _, item := range removed {
		s.removeFrameFile(item.ImagePath)
	}

	records, err := s.store.ListRecent(r.Context(), keep)
	if err != nil {
		s.logger.Error("failed to load detection records", "error", err)
		writeInternalError(w, "failed to load detection records")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, dashboardData{
		GateEnabled: s.gate.Enabled(),
		Keep:        keep,
		Records:     records,
	}); err != nil {
		s.logger.Error("dashboard render failed", "error", err)
	}
}

// removeFrameFile unlinks the stored frame behind a pruned log row.
// Rows store the public URL path, so only the basename is trusted; a
// missing file is not an error.
func (s *Server) removeFrameFile(imagePath string) {
	name := path.Base(imagePath)
	if name == "." || name == "/" || name == "" {
		return
	}
	target := filepath.Join(s.cfg.Storage.FramesDir, name)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove pruned frame", "path", target, "error", err)
	}
}

// handleToggleBrightness flips the brightness gate at runtime.
func (s *Server) handleToggleBrightness(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "error": "missing enabled parameter",
		})
		return
	}

	raw, ok := body["enabled"]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false, "error": "missing enabled parameter",
		})
		return
	}

	enabled := truthy(raw)
	s.gate.SetEnabled(enabled)
	s.logger.Info("brightness gate toggled", "enabled", enabled)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true, "enabled": enabled,
	})
}

// handleBrightnessStatus reports the current gate state.
func (s *Server) handleBrightnessStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": s.gate.Enabled(),
	})
}

// truthy interprets a decoded JSON value the way the firmware sends
// it: booleans directly, numbers as non-zero, strings by emptiness.
func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != "" && v != "false" && v != "0"
	case nil:
		return false
	default:
		return true
	}
}
