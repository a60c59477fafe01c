package http

import (
	"net/http"

	"acme/internal/auth"
	"acme/internal/log"
)

// afterLogin is where a successful sign-in lands.
const afterLogin = "/dashboard"

type loginData struct {
	Email   string
	Message string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.write(w, r, view{status: http.StatusOK, name: tmplLogin, page: page{Title: "Login", Data: loginData{}}})
}

// handleLogin runs the credentials sign-in. Known auth failures re-render
// the form with their message; anything else is a server error.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	msg, err := auth.Authenticate(ctx, s.auth, r.PostForm)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Sign-in failed",
			log.FieldError, err,
			log.FieldOperation, log.OpSignIn,
			log.FieldErrorType, log.ErrorTypeInternal)
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong!", auth.MsgSomethingWrong)
		return
	}
	if msg != "" {
		s.write(w, r, view{
			status: http.StatusUnauthorized,
			name:   tmplLogin,
			page: page{Title: "Login", Data: loginData{
				Email:   sanitizeInput(r.PostForm.Get("email")),
				Message: msg,
			}},
		})
		return
	}
	Redirect(r, afterLogin).Write(w)
}
