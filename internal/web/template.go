package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sensor-hub/internal/logic"
	"github.com/sweeney/sensor-hub/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		switch {
		case days > 0:
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		case h > 0:
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		case m > 0:
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"reading": func(v *float64, unit string) string {
		if v == nil {
			return "--"
		}
		return fmt.Sprintf("%.1f%s", *v, unit)
	},
	"distance": func(d float64) string {
		if logic.IsOutOfRange(d) {
			return outOfRange
		}
		return fmt.Sprintf("%.1fcm", d)
	},
	"lower": func(p logic.Power) string {
		if p == logic.PowerOn {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sensor Hub</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.alert { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; margin-right: 4px; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Sensor Hub<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Sensors</h2>
<table>
<tr><th><a href="/history/temperature">Temperature</a></th><td id="temperature">{{reading .Temperature "°C"}}</td></tr>
<tr><th><a href="/history/humidity">Humidity</a></th><td id="humidity">{{reading .Humidity "%"}}</td></tr>
<tr><th><a href="/history/distance">Distance</a></th><td id="distance" class="{{if .ProximityAlert}}alert{{end}}">{{distance .Distance}}</td></tr>
<tr><th>Touch</th><td id="touch">{{if .TouchActive}}active{{else}}idle{{end}}</td></tr>
<tr><th>Data ready</th><td id="ready">{{if .Initialized}}yes{{else}}waiting for first reading{{end}}</td></tr>
</table>

<h2>Control</h2>
<table>
<tr><th>Mode</th><td><span id="mode">{{.Mode}}</span> <button onclick="post('/toggle_mode')">toggle</button></td></tr>
{{range .Devices}}<tr><th>{{.ID}}</th><td><span id="dev-{{.ID}}" class="{{lower .Power}}">{{.Power}}</span>
 <button onclick="post('/control/{{.ID}}/on')">on</button><button onclick="post('/control/{{.ID}}/off')">off</button></td></tr>
{{end}}</table>
<p id="message"></p>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .Config.Broker}}{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}}){{else}}disabled{{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms (distance {{.Config.DistancePollMs}}ms)</td></tr>
<tr><th>Alert threshold</th><td>{{.Config.AlertThresholdCm}}cm</td></tr>
<tr><th>Thresholds</th><td>aircon &ge; {{.Config.Thresholds.AirconOnAt}}°C, heater &le; {{.Config.Thresholds.HeaterOnAt}}°C, dehumidifier &ge; {{.Config.Thresholds.DehumidifierOnAt}}%</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">metrics</a></p>
<script>
function post(path) {
  fetch(path, { method: "POST" }).then(function(r) { return r.json(); }).then(function(res) {
    document.getElementById("message").textContent = res.success ? "" : (res.message || "request failed");
  });
}
(function() {
  var dot = document.getElementById("live-dot");
  function set(id, text, cls) {
    var el = document.getElementById(id);
    if (!el) return;
    el.textContent = text;
    if (cls !== undefined) el.className = cls;
  }
  function fmt(v, unit) { return v === null ? "--" : v.toFixed(1) + unit; }
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
    ws.onclose = function() { dot.className = "live-dot err"; dot.title = "offline"; setTimeout(connect, 5000); };
    ws.onmessage = function(e) {
      var s = JSON.parse(e.data);
      set("temperature", fmt(s.sensors.temperature, "°C"));
      set("humidity", fmt(s.sensors.humidity, "%"));
      set("distance", s.sensors.distance === null ? "Out of Range" : s.sensors.distance.toFixed(1) + "cm", s.proximity_alert ? "alert" : "");
      set("touch", s.touch_active ? "active" : "idle");
      set("ready", s.data_initialized ? "yes" : "waiting for first reading");
      set("mode", s.status.mode);
      for (var id in s.status.devices) {
        var p = s.status.devices[id];
        set("dev-" + id, p, p === "ON" ? "on" : "off");
      }
    };
  }
  connect();
})();
</script>
</body>
</html>
`

type deviceRow struct {
	ID    logic.ActuatorID
	Power logic.Power
}

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Template needs Uptime as a field and devices in output order.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Devices []deviceRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for _, id := range logic.Actuators {
		if p, ok := snap.Actuators[id]; ok {
			data.Devices = append(data.Devices, deviceRow{ID: id, Power: p})
		}
	}
	return indexTmpl.Execute(w, data)
}
