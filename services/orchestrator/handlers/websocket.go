// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// WSResponse is one reply frame.
type WSResponse struct {
	Action string `json:"action"`
	QueryResponse
	Error    string `json:"error,omitempty"`
	Findings any    `json:"findings,omitempty"`
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleConversationWebSocket serves GET /v1/conversation/ws.
//
// A session id is assigned on connect and sent as a "session_created"
// frame. Each inbound frame is a QueryRequest; its session_id is ignored in
// favour of the connection's. Frames are answered in order.
func HandleConversationWebSocket(cv *Conversation) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sessionID := uuid.NewString()
		slog.Info("New websocket session started", "session_id", sessionID)
		if err := sendJSON(ws, gin.H{"action": "session_created", "session_id": sessionID}); err != nil {
			return
		}

		for {
			var req QueryRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("Websocket client disconnected", "session_id", sessionID, "error", err.Error())
				return
			}

			req.SessionID = sessionID
			req.Question = strings.TrimSpace(req.Question)
			if req.Question == "" {
				if sendJSON(ws, WSResponse{Action: "error", Error: "question must not be empty"}) != nil {
					return
				}
				continue
			}

			resp, findings := cv.Answer(c.Request.Context(), req)
			frame := WSResponse{Action: "answer", QueryResponse: resp}
			if len(findings) > 0 {
				frame = WSResponse{Action: "blocked", Error: blockedReply, Findings: findings}
				frame.SessionID = sessionID
			}
			if sendJSON(ws, frame) != nil {
				return
			}
		}
	}
}
