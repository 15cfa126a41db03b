// Package whatsapp – events.go processes incoming whatsmeow events and
// converts them into unified IncomingMessage values. Status broadcasts,
// group chats and self-messages are dropped here.
package whatsapp

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/pbaptista/stink/pkg/stink/channels"
)

// ConnectionState represents the current connection state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateWaitingQR    ConnectionState = "waiting_qr"
)

// handleEvent is the main whatsmeow event dispatcher.
func (w *WhatsApp) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		w.handleMessageEvt(evt)

	case *events.Connected:
		w.handleConnected(evt)

	case *events.Disconnected:
		w.handleDisconnected(evt)

	case *events.LoggedOut:
		w.handleLoggedOut(evt)

	case *events.StreamReplaced:
		w.logger.Error("whatsapp: stream replaced, another device connected")
		w.setState(StateDisconnected)
		w.connected.Store(false)
	}
}

func (w *WhatsApp) handleConnected(_ *events.Connected) {
	w.setState(StateConnected)
	w.connected.Store(true)
	w.errorCount.Store(0)
	w.reconnectAttempts.Store(0)
	w.logger.Info("whatsapp: connected", "jid", w.getClientJID())
}

func (w *WhatsApp) handleDisconnected(_ *events.Disconnected) {
	previous := w.getState()
	w.setState(StateDisconnected)
	w.connected.Store(false)
	w.logger.Warn("whatsapp: disconnected")

	// Attempt reconnection if the drop was not intentional.
	if previous == StateConnected && w.ctx.Err() == nil {
		go w.attemptReconnect()
	}
}

func (w *WhatsApp) handleLoggedOut(evt *events.LoggedOut) {
	w.setState(StateDisconnected)
	w.connected.Store(false)

	reason := "unknown"
	if evt.Reason != 0 {
		reason = evt.Reason.String()
	}
	w.logger.Error("whatsapp: logged out, session invalidated",
		"reason", reason, "on_connect", evt.OnConnect)
}

// handleMessageEvt processes an incoming WhatsApp message event.
func (w *WhatsApp) handleMessageEvt(evt *events.Message) {
	// Skip messages from self.
	if evt.Info.IsFromMe {
		return
	}

	// Skip status broadcasts.
	if evt.Info.Chat.Server == "broadcast" {
		return
	}

	// DMs only: group chats never reach the session pipeline.
	if evt.Info.IsGroup {
		return
	}

	content := extractText(evt.Message)
	if content == "" {
		return
	}

	msg := &channels.IncomingMessage{
		ID:        string(evt.Info.ID),
		Channel:   "whatsapp",
		From:      evt.Info.Sender.ToNonAD().String(),
		FromName:  evt.Info.PushName,
		Content:   content,
		Timestamp: evt.Info.Timestamp,
	}

	if w.cfg.AutoRead {
		go func() {
			_ = w.client.MarkRead(w.ctx, []types.MessageID{evt.Info.ID},
				evt.Info.Timestamp, evt.Info.Chat, evt.Info.Sender)
		}()
	}

	w.emitMessage(msg)
}

// extractText gets the plain text content from a WhatsApp message.
// Non-text messages yield an empty string and are dropped.
func extractText(waMsg *waE2E.Message) string {
	if waMsg == nil {
		return ""
	}
	if waMsg.Conversation != nil {
		return waMsg.GetConversation()
	}
	if ext := waMsg.ExtendedTextMessage; ext != nil {
		return ext.GetText()
	}
	return ""
}
