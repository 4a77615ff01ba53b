package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	napv1 "github.com/nupi-ai/nupi/api/nap/v1"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/adapterinfo"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/config"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/proxy"
)

const (
	chunkSize = 4096 // bytes per chunk

	metaVoiceID = "voice_id"
	metaModelID = "model_id"
)

// Server implements the NAP TextToSpeechService on top of the studio proxy,
// so nupi can use the studio as a TTS adapter.
type Server struct {
	napv1.UnimplementedTextToSpeechServiceServer

	cfg   config.Config
	log   *slog.Logger
	proxy Proxy
}

// New returns a new Server instance.
func New(cfg config.Config, logger *slog.Logger, p Proxy) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		panic("server: proxy must not be nil")
	}
	return &Server{
		cfg: cfg,
		log: logger.With(
			"component", "nap",
			"model", cfg.Model,
			"voice_id", cfg.VoiceID,
		),
		proxy: p,
	}
}

// StreamSynthesis accepts a text synthesis request and streams back the MP3
// payload in chunks. Voice and model come from request metadata, falling
// back to the configured defaults; the credential is always the configured
// default.
func (s *Server) StreamSynthesis(req *napv1.StreamSynthesisRequest, stream napv1.TextToSpeechService_StreamSynthesisServer) error {
	if req == nil {
		return fmt.Errorf("server: request is nil")
	}

	text := req.GetText()
	voiceID := metadataOr(req.GetMetadata(), metaVoiceID, s.cfg.VoiceID)
	modelID := metadataOr(req.GetMetadata(), metaModelID, s.cfg.Model)

	logEntry := s.log.With(
		"session_id", req.GetSessionId(),
		"stream_id", req.GetStreamId(),
		"text_length", len(text),
		"request_voice_id", voiceID,
		"request_model", modelID,
	)

	if text == "" {
		logEntry.Warn("empty text in synthesis request")
		return s.sendError(stream, "text is required")
	}

	logEntry.Info("synthesis request received")

	if err := s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_STARTED, nil); err != nil {
		logEntry.Error("failed to send started status", "error", err)
		return err
	}

	ctx := stream.Context()
	start := time.Now()

	result := s.proxy.Synthesize(ctx, s.proxy.Credential(""), proxy.SpeechRequest{
		Text:    text,
		VoiceID: voiceID,
		ModelID: modelID,
	})

	switch res := result.(type) {
	case proxy.Audio:
		return s.streamAudio(res, voiceID, modelID, len(text), time.Since(start), stream, logEntry)
	case proxy.Failure:
		logEntry.Error("synthesis failed", "status", res.Status, "message", res.Message)
		return s.sendError(stream, fmt.Sprintf("synthesis failed (status %d): %s", res.Status, res.Message))
	default:
		return s.sendError(stream, "synthesis failed: unexpected result")
	}
}

// streamAudio sends data in chunkSize pieces followed by FINISHED.
func (s *Server) streamAudio(audio proxy.Audio, voiceID, modelID string, textLen int, elapsed time.Duration, stream napv1.TextToSpeechService_StreamSynthesisServer, logEntry *slog.Logger) error {
	if err := s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_PLAYING, nil); err != nil {
		logEntry.Error("failed to send playing status", "error", err)
		return err
	}

	data := audio.Data
	chunkMeta := adapterinfo.SynthesisMetadata(modelID, voiceID, string(audio.Source))

	var sequence uint64
	ctx := stream.Context()
	for offset := 0; offset < len(data); offset += chunkSize {
		if err := ctx.Err(); err != nil {
			logEntry.Info("synthesis interrupted", "reason", err)
			return s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_INTERRUPTED, map[string]string{
				"reason": err.Error(),
			})
		}

		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		sequence++

		resp := &napv1.SynthesisResponse{
			Status: napv1.SynthesisStatus_SYNTHESIS_STATUS_PLAYING,
			Chunk: &napv1.AudioChunk{
				Data:     data[offset:end],
				Sequence: sequence,
				First:    sequence == 1,
				Last:     end == len(data),
				Metadata: chunkMeta,
			},
		}

		if err := stream.Send(resp); err != nil {
			logEntry.Error("failed to send audio chunk", "error", err, "sequence", sequence)
			return err
		}
	}

	logEntry.Info("synthesis streamed",
		"source", string(audio.Source),
		"total_bytes", len(data),
		"chunks", sequence,
		"duration_sec", elapsed.Seconds(),
	)

	metadata := map[string]string{
		"total_bytes":  fmt.Sprintf("%d", len(data)),
		"total_chunks": fmt.Sprintf("%d", sequence),
		"duration_sec": fmt.Sprintf("%.2f", elapsed.Seconds()),
		"text_length":  fmt.Sprintf("%d", textLen),
		"source":       string(audio.Source),
		"content_type": audio.ContentType,
	}

	return s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_FINISHED, metadata)
}

func (s *Server) sendStatus(stream napv1.TextToSpeechService_StreamSynthesisServer, status napv1.SynthesisStatus, metadata map[string]string) error {
	resp := &napv1.SynthesisResponse{
		Status:   status,
		Metadata: metadata,
	}
	return stream.Send(resp)
}

func (s *Server) sendError(stream napv1.TextToSpeechService_StreamSynthesisServer, message string) error {
	resp := &napv1.SynthesisResponse{
		Status:       napv1.SynthesisStatus_SYNTHESIS_STATUS_ERROR,
		ErrorMessage: message,
	}
	if err := stream.Send(resp); err != nil {
		return err
	}
	return fmt.Errorf("synthesis error: %s", message)
}

func metadataOr(metadata map[string]string, key, fallback string) string {
	if v := strings.TrimSpace(metadata[key]); v != "" {
		return v
	}
	return fallback
}
