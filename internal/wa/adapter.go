// Package wa wraps the whatsmeow client: connection lifecycle, QR pairing,
// sending, and translation of protocol events into bus payloads.
package wa

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/pcarvalho/wacrm/internal/bus"
	"github.com/pcarvalho/wacrm/internal/reconcile"
	"github.com/pcarvalho/wacrm/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

const contactsCacheKey = "contacts"

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
// Device credentials live in the whatsmeow-owned session.db; everything
// else stays in the in-memory stores.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	session   string

	// contactCache holds the translated device-store contact list so the
	// periodic resync does not hammer sqlite.
	contactCache *cache.Cache
}

// NewAdapter opens the session store and builds the client for the given
// session.
func NewAdapter(ctx context.Context, sessionName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("WACRM", [3]uint32{0, 1, 0})

	dbPath := session.SessionDBPath(sessionName)
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client:       whatsmeow.NewClient(deviceStore, nil),
		container:    container,
		bus:          b,
		logger:       logger,
		session:      sessionName,
		contactCache: cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

// Client returns the underlying whatsmeow client.
func (a *Adapter) Client() *whatsmeow.Client {
	return a.client
}

// IsLoggedIn reports whether the session has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// PhoneNumber returns the own phone number, or empty before pairing.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// SendText sends a text message and returns the server message id.
// Satisfies the outbox sender dependency.
func (a *Adapter) SendText(ctx context.Context, key, text string) (string, error) {
	to, err := types.ParseJID(key)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// Contacts translates the device-store contact list, attaching the LID
// sibling for every phone contact the device store can pair. Results are
// cached briefly.
func (a *Adapter) Contacts(ctx context.Context) []reconcile.ContactRecord {
	if cached, ok := a.contactCache.Get(contactsCacheKey); ok {
		return cached.([]reconcile.ContactRecord)
	}

	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to read device store contacts", zap.Error(err))
		return nil
	}

	var records []reconcile.ContactRecord
	for jid, info := range allContacts {
		normalized := jid.ToNonAD()
		rec := reconcile.ContactRecord{
			Key:          normalized.String(),
			FullName:     info.FullName,
			BusinessName: info.BusinessName,
			PushName:     info.PushName,
		}
		if normalized.Server == types.DefaultUserServer {
			if lid, err := a.client.Store.LIDs.GetLIDForPN(ctx, normalized); err == nil && !lid.IsEmpty() {
				rec.LID = lid.String()
			}
		}
		records = append(records, rec)
	}
	a.contactCache.Set(contactsCacheKey, records, cache.DefaultExpiration)
	return records
}

// ResolveIdentities answers the reconciliation bootstrap: for each phone
// key, look up the LID the device store has paired with it. Keys the store
// cannot pair come back with an empty LID.
func (a *Adapter) ResolveIdentities(ctx context.Context, phones []string) ([]reconcile.IdentityResult, error) {
	results := make([]reconcile.IdentityResult, 0, len(phones))
	for _, phone := range phones {
		jid, err := types.ParseJID(phone)
		if err != nil {
			a.logger.Debug("skipping unparseable key", zap.String("key", phone))
			continue
		}
		res := reconcile.IdentityResult{Phone: jid.ToNonAD().String()}
		lid, err := a.client.Store.LIDs.GetLIDForPN(ctx, jid.ToNonAD())
		if err == nil && !lid.IsEmpty() {
			res.LID = lid.String()
		}
		results = append(results, res)
	}
	return results, nil
}

// resolveSibling returns the other-space identifier for a chat key, or
// empty when the device store has no pairing.
func (a *Adapter) resolveSibling(ctx context.Context, jid types.JID) string {
	if a == nil || a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return ""
	}
	store := a.client.Store.LIDs
	switch jid.Server {
	case types.DefaultUserServer:
		if lid, err := store.GetLIDForPN(ctx, jid); err == nil && !lid.IsEmpty() {
			return lid.String()
		}
	case types.HiddenUserServer:
		if pn, err := store.GetPNForLID(ctx, jid); err == nil && !pn.IsEmpty() {
			return pn.String()
		}
	}
	return ""
}
