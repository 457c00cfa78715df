package control

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/crewrelay/internal/bus"
)

// sendMessageRequest is the body of the send-message endpoints. The
// generic endpoint additionally carries the persona selector.
type sendMessageRequest struct {
	Bot       string `json:"bot,omitempty"`
	BotKey    string `json:"botKey,omitempty"`
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId,omitempty"`
	Response  string `json:"response"`
	Action    string `json:"action,omitempty"` // "reply" (default) or "send"
}

type botSummary struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Color   int    `json:"color"`
}

// handleRoot reports overall status plus a terse per-persona status list.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	bots := make([]entry, 0, len(s.registry.Keys()))
	for _, p := range s.registry.List() {
		bots = append(bots, entry{Name: p.Name, Status: statusOf(p)})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "online",
		"bots":   bots,
	})
}

// handleHealth reports process uptime and per-persona connection state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name      string `json:"name"`
		Connected bool   `json:"connected"`
		Channel   string `json:"channel"`
	}
	bots := make(map[string]entry, len(s.registry.Keys()))
	for _, p := range s.registry.List() {
		bots[p.Key] = entry{
			Name:      p.Name,
			Connected: p.IsOnline(),
			Channel:   p.Channel,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
		"bots":      bots,
	})
}

// handleListBots lists every persona with its live status.
func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	bots := make([]botSummary, 0, len(s.registry.Keys()))
	for _, p := range s.registry.List() {
		bots = append(bots, botSummary{
			Key:     p.Key,
			Name:    p.Name,
			Channel: p.Channel,
			Status:  statusOf(p),
			Color:   p.Color,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bots": bots})
}

// handleSendAs posts a message or reply through the persona in the path.
func (s *Server) handleSendAs(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	s.sendAs(w, r.PathValue("botKey"), req)
}

// handleSendDefault accepts the persona selector in the body, falling back
// to the configured default persona.
func (s *Server) handleSendDefault(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	key := req.BotKey
	if key == "" {
		key = req.Bot
	}
	if key == "" {
		key = s.cfg.DefaultBot
	}
	s.sendAs(w, key, req)
}

func (s *Server) sendAs(w http.ResponseWriter, botKey string, req sendMessageRequest) {
	slog.Info("control send request",
		"bot", botKey,
		"channel_id", req.ChannelID,
		"message_id", req.MessageID,
		"action", req.Action,
	)

	p, ok := s.registry.Get(botKey)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":         "Bot not found",
			"availableBots": s.registry.Keys(),
		})
		return
	}

	conn := p.Conn()
	if conn == nil || !conn.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": p.Name + " is not connected to Discord",
		})
		return
	}

	channelName, err := conn.ChannelName(req.ChannelID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":     "Channel not found",
			"channelId": req.ChannelID,
		})
		return
	}

	action := req.Action
	if action == "" {
		action = "reply"
	}

	var messageID string
	if action == "reply" && req.MessageID != "" {
		messageID, err = conn.Reply(req.ChannelID, req.MessageID, req.Response)
	} else {
		messageID, err = conn.SendMessage(req.ChannelID, req.Response)
	}
	if err != nil {
		slog.Error("control send failed", "bot", botKey, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if s.events != nil {
		s.events.Broadcast(bus.Event{Name: bus.EventMessageSent, Payload: map[string]string{
			"persona":    p.Key,
			"channel":    channelName,
			"message_id": messageID,
		}})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"messageId":   messageID,
		"channelName": channelName,
		"bot":         p.Name,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
