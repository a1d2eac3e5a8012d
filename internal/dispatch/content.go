package dispatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
)

type Kind string

const (
	KindText     Kind = "text"
	KindTemplate Kind = "template"
	KindMedia    Kind = "media"
	KindLocation Kind = "location"
)

// Content is the closed set of outbound message kinds. Adding a kind means
// adding a variant here and a case in BuildRequest; the compiler finds every
// switch that needs updating.
type Content interface {
	kind() Kind
}

type Text struct {
	Body       string
	PreviewURL bool
}

func (Text) kind() Kind { return KindText }

type Template struct {
	Name         string
	LanguageCode string
	Components   []types.TemplateComponent
}

func (Template) kind() Kind { return KindTemplate }

type Media struct {
	MediaKind string // image, video, audio, document, sticker
	Link      string
	MediaID   string
	Caption   string
	Filename  string
}

func (Media) kind() Kind { return KindMedia }

type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}

func (Location) kind() Kind { return KindLocation }

func KindOf(c Content) Kind {
	return c.kind()
}

// BuildRequest produces the provider wire payload for one recipient.
// Template parameters are personalized per recipient before building.
func BuildRequest(recipient model.Participant, c Content, contextProviderID string) (*types.ProviderSendRequest, error) {
	req := &types.ProviderSendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipient.Address,
	}
	if contextProviderID != "" {
		req.Context = &types.ProviderContext{MessageID: contextProviderID}
	}

	switch v := c.(type) {
	case Text:
		req.Type = "text"
		req.Text = &types.TextPayload{Body: v.Body, PreviewURL: v.PreviewURL}
	case Template:
		req.Type = "template"
		req.Template = &types.TemplatePayload{
			Name:       v.Name,
			Language:   types.TemplateLanguage{Code: v.LanguageCode},
			Components: personalizeComponents(v.Components, recipient),
		}
	case Media:
		payload := &types.MediaPayload{
			ID:      v.MediaID,
			Link:    v.Link,
			Caption: v.Caption,
		}
		switch v.MediaKind {
		case "image":
			req.Type = "image"
			req.Image = payload
		case "video":
			req.Type = "video"
			req.Video = payload
		case "audio":
			req.Type = "audio"
			req.Audio = payload
		case "document":
			req.Type = "document"
			payload.Filename = v.Filename
			req.Document = payload
		case "sticker":
			req.Type = "sticker"
			req.Sticker = payload
		default:
			return nil, fmt.Errorf("unsupported media kind: %q", v.MediaKind)
		}
	case Location:
		req.Type = "location"
		req.Location = &types.LocationPayload{
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
			Name:      v.Name,
			Address:   v.Address,
		}
	default:
		return nil, fmt.Errorf("unsupported content kind: %T", c)
	}

	return req, nil
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Personalize substitutes recognized placeholder tokens with per-recipient
// values. Unknown placeholders resolve to the empty string, never an error.
func Personalize(s string, recipient model.Participant) string {
	vars := map[string]string{
		"name":  recipient.Name,
		"phone": recipient.Address,
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		return vars[strings.ToLower(sub[1])]
	})
}

func personalizeComponents(components []types.TemplateComponent, recipient model.Participant) []types.TemplateComponent {
	if len(components) == 0 {
		return nil
	}
	out := make([]types.TemplateComponent, len(components))
	for i, comp := range components {
		out[i] = comp
		if len(comp.Parameters) == 0 {
			continue
		}
		params := make([]types.TemplateParameter, len(comp.Parameters))
		for j, p := range comp.Parameters {
			params[j] = p
			if p.Type == "text" {
				params[j].Text = Personalize(p.Text, recipient)
			}
		}
		out[i].Parameters = params
	}
	return out
}

// Preview is the one-line summary shown as a chat's last message.
func Preview(c Content) string {
	switch v := c.(type) {
	case Text:
		return v.Body
	case Template:
		return "Template: " + v.Name
	case Media:
		if v.Caption != "" {
			return v.Caption
		}
		return "[" + v.MediaKind + "]"
	case Location:
		if v.Name != "" {
			return "Location: " + v.Name
		}
		return "[location]"
	default:
		return ""
	}
}

// messageModel maps content onto the persisted message shape.
func messageModel(c Content) (model.MessageType, string, *model.MediaDescriptor, *model.LocationDescriptor) {
	switch v := c.(type) {
	case Text:
		return model.MessageText, v.Body, nil, nil
	case Template:
		return model.MessageTemplate, "Template: " + v.Name, nil, nil
	case Media:
		return model.MessageMedia, v.Caption, &model.MediaDescriptor{
			Kind:     v.MediaKind,
			Link:     v.Link,
			MediaID:  v.MediaID,
			Caption:  v.Caption,
			Filename: v.Filename,
		}, nil
	case Location:
		return model.MessageLocation, "", nil, &model.LocationDescriptor{
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
			Name:      v.Name,
			Address:   v.Address,
		}
	default:
		return model.MessageText, "", nil, nil
	}
}
