/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/friendsincode/ratatosk/internal/routing"
	"github.com/friendsincode/ratatosk/internal/telemetry"
)

// maxValueBytes caps PUT bodies; oversized values belong in object
// storage, not a cache.
const maxValueBytes = 8 << 20

func newRequest(r *http.Request, op routing.Operation) *routing.Request {
	return &routing.Request{
		ID:         uuid.NewString(),
		Op:         op,
		Key:        chi.URLParam(r, "key"),
		ReceivedAt: time.Now(),
	}
}

// dispatch runs the request through the active route tree and writes the
// reply.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *routing.Request) {
	reply, err := s.table.Load().Route(r.Context(), req)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("request_id", req.ID).
			Str("op", req.Op.String()).
			Str("key", req.Key).
			Msg("dispatch failed")
		telemetry.RouteOperationsTotal.WithLabelValues(req.Op.String(), "dispatch_error").Inc()
		http.Error(w, "dispatch failed", http.StatusBadGateway)
		return
	}

	telemetry.RouteOperationsTotal.WithLabelValues(req.Op.String(), reply.Result.String()).Inc()
	writeReply(w, req, reply)
}

func writeReply(w http.ResponseWriter, req *routing.Request, reply *routing.Reply) {
	switch reply.Result {
	case routing.ResultFound:
		if reply.Flags != 0 {
			w.Header().Set("X-Cache-Flags", strconv.FormatUint(uint64(reply.Flags), 10))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(reply.Value)

	case routing.ResultStored, routing.ResultDeleted, routing.ResultTouched:
		w.WriteHeader(http.StatusNoContent)

	case routing.ResultNotStored, routing.ResultExists:
		http.Error(w, reply.Result.String(), http.StatusConflict)

	case routing.ResultNotFound:
		http.Error(w, "not found", http.StatusNotFound)

	case routing.ResultTimeout:
		http.Error(w, "backend timeout", http.StatusGatewayTimeout)

	default:
		http.Error(w, "backend error: "+reply.Message, http.StatusBadGateway)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, newRequest(r, routing.OpGet))
}

// handleStore covers set and its conditional variants, selected with
// ?op=add|replace|append|prepend (default set).
func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	op := routing.OpSet
	if name := r.URL.Query().Get("op"); name != "" {
		parsed, err := routing.ParseOperation(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch parsed {
		case routing.OpSet, routing.OpAdd, routing.OpReplace, routing.OpAppend, routing.OpPrepend:
			op = parsed
		default:
			http.Error(w, "op must be a storage operation", http.StatusBadRequest)
			return
		}
	}

	value, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if len(value) > maxValueBytes {
		http.Error(w, "value too large", http.StatusRequestEntityTooLarge)
		return
	}

	req := newRequest(r, op)
	req.Value = value

	if raw := r.URL.Query().Get("ttl"); raw != "" {
		ttl, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ttl < 0 {
			http.Error(w, "ttl must be a non-negative integer", http.StatusBadRequest)
			return
		}
		req.Expire = ttl
	}

	if raw := r.URL.Query().Get("flags"); raw != "" {
		flags, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			http.Error(w, "flags must be an unsigned integer", http.StatusBadRequest)
			return
		}
		req.Flags = uint32(flags)
	}

	s.dispatch(w, r, req)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, newRequest(r, routing.OpDelete))
}

func (s *Server) handleCounter(op routing.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := newRequest(r, op)
		req.Delta = 1
		if raw := r.URL.Query().Get("delta"); raw != "" {
			delta, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				http.Error(w, "delta must be an unsigned integer", http.StatusBadRequest)
				return
			}
			req.Delta = delta
		}
		s.dispatch(w, r, req)
	}
}

// handleIntrospect reports which destination handles an operation would be
// routed to right now, without dispatching it.
func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	op := routing.OpGet
	if name := r.URL.Query().Get("op"); name != "" {
		parsed, err := routing.ParseOperation(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		op = parsed
	}

	req := &routing.Request{
		ID:         uuid.NewString(),
		Op:         op,
		Key:        key,
		ReceivedAt: time.Now(),
	}

	root := s.table.Load()
	destinations := root.CouldRouteTo(req)

	names := make([]string, 0, len(destinations))
	for _, d := range destinations {
		names = append(names, d.Name())
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"root":         root.Name(),
		"op":           op.String(),
		"key":          key,
		"destinations": names,
	})
}
