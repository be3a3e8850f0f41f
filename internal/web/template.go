package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/scroll-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Scroll Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pinned { color: green; font-weight: bold; }
.unpinned { color: #888; }
.unknown { color: orange; }
.frozen { color: #36c; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Scroll Sensor{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Pin</th><td id="pin-state" class="{{if eq (stateOrUnknown (printf "%s" .Pin)) "PINNED"}}pinned{{else if eq (stateOrUnknown (printf "%s" .Pin)) "UNPINNED"}}unpinned{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Pin)}}</td></tr>
<tr><th>Top</th><td id="top-state">{{stateOrUnknown (printf "%s" .Top)}}</td></tr>
<tr><th>Bottom</th><td id="bottom-state">{{stateOrUnknown (printf "%s" .Bottom)}}</td></tr>
<tr><th>Frozen</th><td>{{if .Frozen}}<span class="frozen">yes</span>{{else}}no{{end}}</td></tr>
<tr><th>Position</th><td id="position">{{printf "%.1f" .Position}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Transition Counts</h2>
<table>
<tr><th>PINNED</th><td>{{.Counts.Pinned}}</td></tr>
<tr><th>UNPINNED</th><td>{{.Counts.Unpinned}}</td></tr>
<tr><th>TOP</th><td>{{.Counts.Top}}</td></tr>
<tr><th>NOT_TOP</th><td>{{.Counts.NotTop}}</td></tr>
<tr><th>BOTTOM</th><td>{{.Counts.Bottom}}</td></tr>
<tr><th>NOT_BOTTOM</th><td>{{.Counts.NotBottom}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Source</th><td>{{.Config.Source}}</td></tr>
<tr><th>Settle</th><td>{{.Config.SettleMs}}ms</td></tr>
<tr><th>Offset</th><td>{{printf "%.1f" .Config.Offset}}</td></tr>
<tr><th>Tolerance</th><td>down {{printf "%.1f" .Config.ToleranceDown}} / up {{printf "%.1f" .Config.ToleranceUp}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a>{{if .Config.EventLogPath}} &middot; <a href="/events.json">events</a> &middot; <a href="/history.html">history</a>{{end}}</p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "display/scroll/state/events";
  var dot = document.getElementById("live-dot");
  var pinEl = document.getElementById("pin-state");
  var topEl = document.getElementById("top-state");
  var bottomEl = document.getElementById("bottom-state");
  var posEl = document.getElementById("position");

  function setPin(state) {
    pinEl.textContent = state;
    pinEl.className = state === "PINNED" ? "pinned" : state === "UNPINNED" ? "unpinned" : "unknown";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.scroll) {
        setPin(msg.scroll.pin);
        topEl.textContent = msg.scroll.top;
        bottomEl.textContent = msg.scroll.bottom;
        posEl.textContent = msg.scroll.position.toFixed(1);
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
