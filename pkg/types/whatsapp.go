package types

// Outbound Cloud API request/response shapes. Only the fields this service
// actually sends/reads are modeled.

type ProviderSendRequest struct {
	MessagingProduct string            `json:"messaging_product"`
	RecipientType    string            `json:"recipient_type,omitempty"`
	To               string            `json:"to"`
	Type             string            `json:"type"`
	Context          *ProviderContext  `json:"context,omitempty"`
	Text             *TextPayload      `json:"text,omitempty"`
	Template         *TemplatePayload  `json:"template,omitempty"`
	Image            *MediaPayload     `json:"image,omitempty"`
	Video            *MediaPayload     `json:"video,omitempty"`
	Audio            *MediaPayload     `json:"audio,omitempty"`
	Document         *MediaPayload     `json:"document,omitempty"`
	Sticker          *MediaPayload     `json:"sticker,omitempty"`
	Location         *LocationPayload  `json:"location,omitempty"`
}

type ProviderContext struct {
	MessageID string `json:"message_id"`
}

type TextPayload struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type TemplatePayload struct {
	Name       string              `json:"name"`
	Language   TemplateLanguage    `json:"language"`
	Components []TemplateComponent `json:"components,omitempty"`
}

type TemplateLanguage struct {
	Code string `json:"code"`
}

type TemplateComponent struct {
	Type       string              `json:"type"` // header, body, footer, button
	SubType    string              `json:"sub_type,omitempty"`
	Index      string              `json:"index,omitempty"`
	Parameters []TemplateParameter `json:"parameters,omitempty"`
}

type TemplateParameter struct {
	Type     string           `json:"type"` // text, image, document, video
	Text     string           `json:"text,omitempty"`
	Image    *MediaPayload    `json:"image,omitempty"`
	Document *MediaPayload    `json:"document,omitempty"`
	Video    *MediaPayload    `json:"video,omitempty"`
}

type MediaPayload struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type ProviderSendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *GraphError `json:"error,omitempty"`
}

type GraphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode,omitempty"`
	FbtraceID string `json:"fbtrace_id,omitempty"`
}

// Inbound webhook shapes: entry[].changes[].value carries either messages[]
// (user-originated traffic) or statuses[] (delivery receipts for our sends).

type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         ChangeMetadata   `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusReceipt  `json:"statuses,omitempty"`
}

type ChangeMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type InboundMessage struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Context   *InboundContext `json:"context,omitempty"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *InboundMedia    `json:"image,omitempty"`
	Video    *InboundMedia    `json:"video,omitempty"`
	Audio    *InboundMedia    `json:"audio,omitempty"`
	Document *InboundMedia    `json:"document,omitempty"`
	Sticker  *InboundMedia    `json:"sticker,omitempty"`
	Location *LocationPayload `json:"location,omitempty"`
	Contacts []struct {
		Name struct {
			FormattedName string `json:"formatted_name"`
		} `json:"name"`
		Phones []struct {
			Phone string `json:"phone"`
			WaID  string `json:"wa_id,omitempty"`
		} `json:"phones,omitempty"`
	} `json:"contacts,omitempty"`
	Errors []GraphError `json:"errors,omitempty"`
}

type InboundContext struct {
	From string `json:"from,omitempty"`
	ID   string `json:"id,omitempty"`
}

type InboundMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type StatusReceipt struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"` // sent, delivered, read, failed
	Timestamp   string       `json:"timestamp"`
	RecipientID string       `json:"recipient_id"`
	Errors      []GraphError `json:"errors,omitempty"`
}
