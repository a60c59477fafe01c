package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"acme/internal/core"
	"acme/internal/invoices"
	"acme/internal/log"
)

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	state := s.actions.CreateInvoice(r.Context(), invoices.State{}, r.PostForm)
	s.respondForm(w, r, state, createForm())
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id := chi.URLParam(r, "id")
	state := s.actions.UpdateInvoice(r.Context(), id, invoices.State{}, r.PostForm)
	s.respondForm(w, r, state, editForm(id))
}

// respondForm turns a form action state into a response: navigation on
// commit, 404 for a missing invoice, otherwise the form again with the
// submitted values and the errors.
func (s *Server) respondForm(w http.ResponseWriter, r *http.Request, state invoices.State, f formData) {
	switch {
	case state.Redirect != "":
		Redirect(r, state.Redirect).Write(w)
		return
	case state.NotFound:
		s.write(w, r, notFoundView())
		return
	}

	status := http.StatusUnprocessableEntity
	if len(state.Errors) == 0 {
		status = http.StatusInternalServerError
	}
	f.CustomerID = sanitizeInput(r.PostForm.Get(invoices.FieldCustomerID))
	f.Amount = sanitizeInput(r.PostForm.Get(invoices.FieldAmount))
	f.Status = core.InvoiceStatus(sanitizeInput(r.PostForm.Get(invoices.FieldStatus)))
	f.Errors = state.Errors
	f.Message = state.Message

	v, err := s.formView(r, status, f)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to reload invoice form",
			log.FieldError, err,
			log.FieldOperation, log.OpRead)
		InternalServerError(state.Message).Write(w)
		return
	}
	s.write(w, r, v)
}

// handleDeleteInvoice deletes and sends the client back to the listing it
// came from, or tells an HTMX client to refresh it.
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state := s.actions.DeleteInvoice(r.Context(), id)

	if state.Message != "" {
		if isHTMX(r) {
			NewHTMXResponse().
				Status(http.StatusInternalServerError).
				TriggerErrorNotification(state.Message).
				Write(w)
			return
		}
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong!", state.Message)
		return
	}

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerInvoiceDeleted(id).
			TriggerListingRefresh().
			TriggerSuccessNotification("Invoice deleted.").
			Write(w)
		return
	}
	Redirect(r, ReturnLocation(r)).Write(w)
}
