package service

import (
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ticket-gate/internal/encoder"
	"github.com/iliyamo/ticket-gate/internal/metrics"
	"github.com/iliyamo/ticket-gate/internal/model"
)

// annotate derives the status of t and renders its credential. Encoding
// failures leave Credential empty and are reported in CredentialError.
func annotate(enc encoder.Encoder, t model.Ticket) model.TicketStatus {
	st := model.TicketStatus{Ticket: t, Status: model.StatusOf(t)}
	uri, err := encoder.DataURI(enc, t.TicketID)
	if err != nil {
		metrics.EncodeFailed()
		log.Warn().Err(err).Str("ticket_id", t.TicketID).Msg("credential encoding failed")
		st.CredentialError = err.Error()
		return st
	}
	st.Credential = uri
	return st
}
