package server

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

const pageStyle = `
  body { font-family: -apple-system, system-ui, sans-serif; background: #171a20; color: #f4f4f4;
         display: flex; justify-content: center; padding-top: 10vh; }
  .card { background: #22262e; border-radius: 12px; padding: 2.5rem; max-width: 28rem; width: 100%; }
  h1 { font-size: 1.4rem; margin-top: 0; }
  p { color: #b0b6c0; line-height: 1.5; }
  label { display: block; margin: 1rem 0 0.25rem; font-size: 0.9rem; }
  input { width: 100%; box-sizing: border-box; padding: 0.6rem; border-radius: 6px;
          border: 1px solid #3a3f4a; background: #171a20; color: #f4f4f4; }
  button { margin-top: 1.5rem; width: 100%; padding: 0.7rem; border: none; border-radius: 6px;
           background: #e82127; color: white; font-size: 1rem; cursor: pointer; }
  code { display: block; background: #171a20; padding: 0.8rem; border-radius: 6px;
         margin-top: 1rem; word-break: break-all; font-size: 0.85rem; }
  .error { color: #ff6b6b; }
`

var setupTemplate = template.Must(template.New("setup").Parse(`<!DOCTYPE html>
<html>
<head><title>Tesla MCP Setup</title><style>` + pageStyle + `</style></head>
<body>
  <div class="card">
    <h1>Connect your Tesla developer app</h1>
    <p>Enter the client ID and secret of your Tesla developer application.
       They are stored only for this session.</p>
    {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
    <form method="POST" action="/setup">
      <input type="hidden" name="session" value="{{.Session}}">
      <label for="client_id">Client ID</label>
      <input id="client_id" name="client_id" autocomplete="off" required>
      <label for="client_secret">Client secret</label>
      <input id="client_secret" name="client_secret" type="password" autocomplete="off" required>
      <button type="submit">Continue to Tesla login</button>
    </form>
  </div>
</body>
</html>`))

var successTemplate = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head><title>Tesla Connected</title><style>` + pageStyle + `</style></head>
<body>
  <div class="card">
    <h1>Tesla account connected</h1>
    <p>Point your MCP client at the URL below. The token is single-session;
       run the login flow again if you need a new one.</p>
    <code>{{.ConnectURL}}</code>
  </div>
</body>
</html>`))

var failureTemplate = template.Must(template.New("failure").Parse(`<!DOCTYPE html>
<html>
<head><title>Login Failed</title><style>` + pageStyle + `</style></head>
<body>
  <div class="card">
    <h1>Something went wrong</h1>
    <p>{{.Message}}</p>
  </div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Str("template", tmpl.Name()).Msg("rendering page")
	}
}

func (s *Server) renderFailure(w http.ResponseWriter, message string) {
	s.renderHTML(w, http.StatusBadRequest, failureTemplate, map[string]string{
		"Message": message,
	})
}
