package wa

import (
	"context"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/session"
)

// AuthEventType enumerates auth lifecycle events.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent is one step of the pairing flow. QRPath points at the rendered
// PNG for qr_code events.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	QRPath  string
	Message string
}

// StartQRAuth begins the QR pairing flow. Each fresh code is rendered to a
// PNG under the session directory so the operator can scan it from any
// image viewer. The caller reads the returned channel until it closes.
func (a *Adapter) StartQRAuth(ctx context.Context) (<-chan AuthEvent, error) {
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}
			a.bus.Emit(bus.KindAuthFailed, err.Error())
			return
		}

		for item := range qrChan {
			switch item.Event {
			case "code":
				evt := AuthEvent{Type: AuthEventQRCode, QRCode: item.Code}
				path := session.QRPath(a.session)
				if err := qrcode.WriteFile(item.Code, qrcode.Medium, 512, path); err != nil {
					a.logger.Warn("failed to render QR PNG", zap.Error(err))
				} else {
					evt.QRPath = path
				}
				out <- evt
				a.bus.Emit(bus.KindQRGenerated, item.Code)
			case "success":
				out <- AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}
				a.bus.Emit(bus.KindAuthenticated, nil)
				return
			case "timeout":
				out <- AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"}
				a.bus.Emit(bus.KindAuthFailed, "timeout")
				return
			default:
				if item.Error != nil {
					out <- AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()}
					a.bus.Emit(bus.KindAuthFailed, item.Error.Error())
					return
				}
			}
		}
	}()

	return out, nil
}
