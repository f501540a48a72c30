package wa

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/pcarvalho/wacrm/internal/msgstore"
	"github.com/pcarvalho/wacrm/internal/reconcile"
)

// parseLiveMessage normalizes a live message event. Fresh is true: live
// events are real-time notifications, history sync is not.
func parseLiveMessage(evt *events.Message) *reconcile.InboundMessage {
	return &reconcile.InboundMessage{
		Key: evt.Info.Chat.String(),
		Record: msgstore.Record{
			MsgID:      evt.Info.ID,
			SenderKey:  evt.Info.Sender.String(),
			SenderName: evt.Info.PushName,
			FromMe:     evt.Info.IsFromMe,
			Kind:       detectKind(evt.Message),
			Body:       extractTextBody(evt.Message),
			Status:     "received",
			Timestamp:  evt.Info.Timestamp.UnixMilli(),
		},
		Fresh: true,
	}
}

// extractTextBody pulls displayable text out of a message, including media
// captions.
func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}

func detectKind(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}
