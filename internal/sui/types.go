package sui

import "victory-readmodel/internal/domain"

// EventID is the ledger position of an event and doubles as the page cursor.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// Event is one entry of a suix_queryEvents page.
type Event struct {
	ID                EventID        `json:"id"`
	PackageID         string         `json:"packageId"`
	TransactionModule string         `json:"transactionModule"`
	Sender            string         `json:"sender"`
	Type              string         `json:"type"`
	ParsedJSON        map[string]any `json:"parsedJson"`
	TimestampMs       string         `json:"timestampMs"`
}

// RawEvent converts the event to the archive representation.
func (e Event) RawEvent() domain.RawEvent {
	return domain.RawEvent{
		TypeTag:     e.Type,
		Payload:     e.ParsedJSON,
		TimestampMs: e.TimestampMs,
		TxID:        e.ID.TxDigest,
		EventSeq:    e.ID.EventSeq,
	}
}

// EventPage is one page of events.
type EventPage struct {
	Data        []Event  `json:"data"`
	NextCursor  *EventID `json:"nextCursor"`
	HasNextPage bool     `json:"hasNextPage"`
}

// RawEvents converts every event of the page.
func (p *EventPage) RawEvents() []domain.RawEvent {
	out := make([]domain.RawEvent, len(p.Data))
	for i, e := range p.Data {
		out[i] = e.RawEvent()
	}
	return out
}
