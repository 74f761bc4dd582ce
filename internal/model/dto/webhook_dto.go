package dto

// WhatsAppWebhook mirrors the nested envelope the messaging platform
// posts to the inbound webhook. Only the fields the bot consumes are
// declared; everything else is ignored at the boundary.
type WhatsAppWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []InboundMessage `json:"messages"`
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type InboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Flatten extracts (phone, senderName, text, isText) tuples from the
// envelope in arrival order.
func (w *WhatsAppWebhook) Flatten() []FlatMessage {
	var out []FlatMessage
	for _, entry := range w.Entry {
		for _, change := range entry.Changes {
			name := ""
			if len(change.Value.Contacts) > 0 {
				name = change.Value.Contacts[0].Profile.Name
			}
			for _, msg := range change.Value.Messages {
				out = append(out, FlatMessage{
					Phone:  msg.From,
					Name:   name,
					Text:   msg.Text.Body,
					IsText: msg.Type == "text",
				})
			}
		}
	}
	return out
}

type FlatMessage struct {
	Phone  string
	Name   string
	Text   string
	IsText bool
}
