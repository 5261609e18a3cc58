package server

import (
	"html/template"
	"net/http"
	"strings"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
  <head>
    <title>Kokoro TTS API</title>
    <style>
      body { font-family: system-ui, sans-serif; padding: 2rem; }
      code { background: #f2f2f2; padding: 2px 4px; border-radius: 4px; }
      .card { border: 1px solid #eee; border-radius: 8px; padding: 1rem; margin: 1rem 0; }
    </style>
  </head>
  <body>
    <h1>Kokoro TTS API</h1>
    <div class="card">
      <h2>Endpoints</h2>
      <ul>
        <li><code>GET /</code> &rarr; this page</li>
        <li><code>GET /health</code> &rarr; health and config</li>
        <li><code>GET /voices</code> &rarr; available voices</li>
        <li><code>POST /tts</code> &rarr; synthesize speech (WAV)</li>
        <li><code>GET /history</code> &rarr; recent synthesis requests</li>
        <li><code>GET /metrics</code> &rarr; Prometheus metrics</li>
      </ul>
    </div>
    <div class="card">
      <h2>Quick start</h2>
      <pre><code>curl -sS -X POST http://localhost:{{.Port}}/tts \
  -H "Content-Type: application/json" \
  -d '{"text":"Hello from Kokoro!", "voice":"{{.DefaultVoice}}"}' \
  --output out.wav</code></pre>
    </div>
    <div class="card">
      <h2>Defaults</h2>
      <ul>
        <li>Language code: <code>{{.LangCode}}</code></li>
        <li>Voice: <code>{{.DefaultVoice}}</code></li>
        <li>Speed: <code>{{.DefaultSpeed}}</code></li>
        <li>Sample rate: <code>{{.SampleRate}}</code></li>
        <li>Voices: <code>{{.Voices}}</code></li>
      </ul>
    </div>
  </body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Port         int
		LangCode     string
		DefaultVoice string
		DefaultSpeed float64
		SampleRate   int
		Voices       string
	}{
		Port:         s.cfg.HTTP.Port,
		LangCode:     s.cfg.Engine.LangCode,
		DefaultVoice: s.cfg.Engine.DefaultVoice,
		DefaultSpeed: s.cfg.Engine.DefaultSpeed,
		SampleRate:   s.cfg.Engine.SampleRate,
		Voices:       strings.Join(s.cfg.Engine.Voices(), ", "),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = indexTemplate.Execute(w, data)
}
