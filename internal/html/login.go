// Package html renders the hosted login page served by the authorization
// endpoint. html/template handles escaping of every interpolated value.
package html

import (
	"bytes"
	"html/template"
	"strings"
)

// LoginPage carries everything the login form needs to round-trip the
// authorization request through the POST back to the server.
type LoginPage struct {
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	CSRFToken           string
	ErrorMessage        string
}

// ScopeList splits the scope string for the request-details block.
func (p LoginPage) ScopeList() []string {
	return strings.Fields(p.Scope)
}

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Login - User Management Service</title>
    <link
      rel="stylesheet"
      href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css"
    />
  </head>
  <body>
    <div id="header"></div>
    <main class="container">
      <div class="logo">
        <h1>User Management Service</h1>
      </div>

      {{if .ErrorMessage}}<div class="error-message">
        <p>{{.ErrorMessage}}</p>
      </div>{{end}}

      <form method="POST" action="/oauth/authorize">
        <div class="form-group">
          <label for="email">Email</label>
          <input type="email" id="email" name="email" required />
        </div>

        <div class="form-group">
          <label for="password">Password</label>
          <input type="password" id="password" name="password" required />
        </div>

        <input type="hidden" name="client_id" value="{{.ClientID}}" />
        <input type="hidden" name="redirect_uri" value="{{.RedirectURI}}" />
        <input type="hidden" name="scope" value="{{.Scope}}" />
        <input type="hidden" name="state" value="{{.State}}" />
        <input type="hidden" name="code_challenge" value="{{.CodeChallenge}}" />
        <input type="hidden" name="code_challenge_method" value="{{.CodeChallengeMethod}}" />
        <input type="hidden" name="csrf_token" value="{{.CSRFToken}}" />
        <input type="hidden" name="action" value="login" />

        <button type="submit" class="login-button">Login</button>
      </form>

      <details name="authorization_request_details">
        <summary>Authorization Request Details</summary>
        <p><strong>App:</strong> {{.ClientID}}</p>
        <p><strong>Redirect:</strong> {{.RedirectURI}}</p>
        <p><strong>Requested Permissions:</strong></p>
        <div style="margin-top: 5px">{{range .ScopeList}}<span class="scope">{{.}}</span> {{end}}</div>
      </details>

      <div class="oauth-info"></div>
      <div id="footer"></div>
    </main>
  </body>
</html>
`))

// RenderLogin renders the login page to a string.
func RenderLogin(page LoginPage) (string, error) {
	var buf bytes.Buffer
	if err := loginTemplate.Execute(&buf, page); err != nil {
		return "", err
	}
	return buf.String(), nil
}
